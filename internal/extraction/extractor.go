package extraction

// #region imports
import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// #endregion

// #region errors

// ErrInvalidContext indicates the raw snapshot failed validation.
var ErrInvalidContext = errors.New("invalid context")

// #endregion

// #region wifi-patterns

// WiFi SSID patterns for location inference. Case-insensitive.
var (
	homeWifiPattern   = regexp.MustCompile(`(?i)home`)
	workWifiPattern   = regexp.MustCompile(`(?i)office|work`)
	campusWifiPattern = regexp.MustCompile(`(?i)campus|university`)
)

// #endregion

// #region validate

// Validate checks a raw snapshot against the accepted vocabulary.
func Validate(c Context) error {
	if c.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing or unparseable timestamp", ErrInvalidContext)
	}
	if c.SpeedKmh < 0 {
		return fmt.Errorf("%w: negative speed %.2f", ErrInvalidContext, c.SpeedKmh)
	}
	if c.Activity == "" {
		return fmt.Errorf("%w: missing activity", ErrInvalidContext)
	}
	if !knownActivities[c.Activity] {
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidContext, c.Activity)
	}
	return nil
}

// #endregion

// #region extract

// Extract converts a raw snapshot into categorical features.
// Pure function: same input always yields the same output.
func Extract(c Context) ExtractedContext {
	hour := c.Timestamp.Hour()
	dow := isoWeekday(c.Timestamp)
	isWeekday := dow <= 5

	ec := ExtractedContext{
		Timestamp:      c.Timestamp,
		TimeOfDay:      timeOfDay(hour),
		DayOfWeek:      dow,
		IsWeekday:      isWeekday,
		IsWeekend:      !isWeekday,
		Hour:           hour,
		Minute:         c.Timestamp.Minute(),
		ActivityState:  activityState(c.Activity),
		RawActivity:    c.Activity,
		CarConnected:   c.CarBluetoothConnected,
		WifiSSID:       c.WifiSSID,
		LocationVector: c.LocationVector,
		SpeedKmh:       c.SpeedKmh,
	}
	ec.LocationCategory = locationCategory(c)
	ec.ConfidenceScore = confidenceScore(c)
	return ec
}

// #endregion

// #region time-of-day

func timeOfDay(hour int) TimeOfDay {
	switch {
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	case hour < 21:
		return Evening
	default:
		return Night
	}
}

// #endregion

// #region weekday

// isoWeekday maps time.Weekday to ISO numbering (Monday=1 .. Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// #endregion

// #region activity-state

func activityState(a Activity) ActivityState {
	switch a {
	case ActivityStill:
		return StateStationary
	case ActivityWalking, ActivityRunning, ActivityOnFoot:
		return StateWalking
	case ActivityInVehicle, ActivityOnBicycle:
		return StateTraveling
	default:
		return StateUnknown
	}
}

// #endregion

// #region location-category

// locationCategory applies the inference rules in order; first match wins.
func locationCategory(c Context) LocationCategory {
	speed := c.SpeedKmh
	ssid := c.WifiSSID

	switch {
	case speed > 10 && c.CarBluetoothConnected && c.Activity == ActivityInVehicle:
		return LocCommute
	case speed < 5 && ssid != "" && (homeWifiPattern.MatchString(ssid) || ssid == "HomeWiFi"):
		return LocHome
	case speed < 5 && ssid != "" && (workWifiPattern.MatchString(ssid) || ssid == "OfficeWiFi"):
		return LocWork
	case speed < 5 && ssid != "" && campusWifiPattern.MatchString(ssid):
		return LocCampus
	case speed > 0 && speed < 10 && c.Activity == ActivityWalking && ssid == "":
		return LocNearHome
	case speed < 5 && c.CarBluetoothConnected && c.Activity == ActivityStill:
		return LocInParkedVehicle
	default:
		return LocUnknown
	}
}

// #endregion

// #region confidence

// confidenceScore starts at 1.0 and penalizes each missing primary signal.
func confidenceScore(c Context) float64 {
	score := 1.0
	if c.Activity == ActivityUnknown {
		score -= 0.2
	}
	if c.WifiSSID == "" && !c.CarBluetoothConnected {
		score -= 0.2
	}
	if c.LocationVector == "" {
		score -= 0.2
	}
	if score < 0 {
		score = 0
	}
	return score
}

// #endregion

// #region context-key

// ContextKey derives the canonical slot-grouping signature.
// Format: activityState_timeOfDay_dayType_locationCategory.
func ContextKey(ec ExtractedContext) string {
	dayType := "weekend"
	if ec.IsWeekday {
		dayType = "weekday"
	}
	return strings.Join([]string{
		string(ec.ActivityState),
		string(ec.TimeOfDay),
		dayType,
		string(ec.LocationCategory),
	}, "_")
}

// #endregion
