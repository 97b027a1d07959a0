package rules

// #region imports
import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
)

// #endregion

// #region condition-keys

// Recognized trigger condition keys. Unknown keys are ignored but noted.
const (
	condActivity         = "activity"
	condActivityType     = "activity_type"
	condTimeRange        = "time_range"
	condTime             = "time"
	condDayOfWeek        = "day_of_week"
	condIsWeekday        = "is_weekday"
	condLocationVector   = "location_vector"
	condLocationCategory = "location_category"
	condWifiSSID         = "wifi_ssid"
	condCarBluetooth     = "car_bluetooth"
	condMinSpeed         = "min_speed"
	condMaxSpeed         = "max_speed"
)

const extrasPrefix = "extras."

// exactTimeToleranceMinutes is the ± window for the "time" condition.
const exactTimeToleranceMinutes = 15

var dayNames = map[string]int{
	"monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4,
	"friday": 5, "saturday": 6, "sunday": 7,
}

// #endregion

// #region match-result

// MatchResult is the outcome of evaluating one rule against one context.
type MatchResult struct {
	BaseScore         float64
	RecognizedKeys    int
	MatchedKeys       int
	MatchedConditions map[string]interface{}
	Reasons           []string
	UnknownKeys       []string
}

// Reasoning joins the human-readable match fragments.
func (m MatchResult) Reasoning() string {
	if len(m.Reasons) == 0 {
		return "Conditions not met"
	}
	return strings.Join(m.Reasons, " | ")
}

// #endregion

// #region match

// Match scores a rule's trigger condition against an extracted context.
// extras is the raw snapshot's extras map (may be nil); it backs the
// "extras.<name>" condition keys. base_score = matched / max(recognized, 1);
// a rule with no recognized keys scores zero and is never suggested.
func Match(r Rule, ec extraction.ExtractedContext, extras map[string]interface{}) MatchResult {
	res := MatchResult{MatchedConditions: make(map[string]interface{})}

	for key, expected := range r.TriggerCondition {
		if strings.HasPrefix(key, extrasPrefix) {
			name := strings.TrimPrefix(key, extrasPrefix)
			actual, present := extras[name]
			res.check(key, expected, present && equalValues(expected, actual),
				fmt.Sprintf("%s: %v", humanizeToken(name), actual))
			continue
		}
		switch key {
		case condActivity:
			res.check(key, expected, matchString(expected, string(ec.ActivityState)),
				fmt.Sprintf("You are %s", humanizeActivity(ec.RawActivity)))
		case condActivityType:
			res.check(key, expected, matchString(expected, string(ec.RawActivity)),
				fmt.Sprintf("Activity is %s", humanizeActivity(ec.RawActivity)))
		case condTimeRange:
			res.check(key, expected, matchTimeRange(expected, ec.Timestamp),
				fmt.Sprintf("Time is %s", ec.Timestamp.Format("03:04 PM")))
		case condTime:
			res.check(key, expected, matchExactTime(expected, ec.Timestamp),
				fmt.Sprintf("Close to %v", expected))
		case condDayOfWeek:
			res.check(key, expected, matchDayOfWeek(expected, ec.DayOfWeek),
				fmt.Sprintf("Day matches (%s)", ec.Timestamp.Weekday()))
		case condIsWeekday:
			res.check(key, expected, matchBool(expected, ec.IsWeekday),
				dayTypeReason(ec.IsWeekday))
		case condLocationVector:
			res.check(key, expected, ec.LocationVector != "" && matchString(expected, ec.LocationVector),
				fmt.Sprintf("Location: %s", humanizeToken(ec.LocationVector)))
		case condLocationCategory:
			res.check(key, expected, matchString(expected, string(ec.LocationCategory)),
				fmt.Sprintf("At %s", humanizeToken(string(ec.LocationCategory))))
		case condWifiSSID:
			res.check(key, expected, matchWifi(expected, ec.WifiSSID), wifiReason(ec.WifiSSID))
		case condCarBluetooth:
			res.check(key, expected, matchBool(expected, ec.CarConnected), "Connected to car Bluetooth")
		case condMinSpeed:
			bound, ok := asFloat(expected)
			res.check(key, expected, ok && ec.SpeedKmh >= bound,
				fmt.Sprintf("Speed: %.1f km/h", ec.SpeedKmh))
		case condMaxSpeed:
			bound, ok := asFloat(expected)
			res.check(key, expected, ok && ec.SpeedKmh <= bound,
				fmt.Sprintf("Speed: %.1f km/h", ec.SpeedKmh))
		default:
			res.UnknownKeys = append(res.UnknownKeys, key)
		}
	}

	if len(res.UnknownKeys) > 0 {
		log.Printf("[MATCH] rule %d: ignoring unknown condition keys %v", r.ID, res.UnknownKeys)
	}

	if res.RecognizedKeys > 0 {
		res.BaseScore = float64(res.MatchedKeys) / float64(res.RecognizedKeys)
	}
	return res
}

func (m *MatchResult) check(key string, expected interface{}, matched bool, reason string) {
	m.RecognizedKeys++
	if matched {
		m.MatchedKeys++
		m.MatchedConditions[key] = expected
		m.Reasons = append(m.Reasons, reason)
	}
}

// #endregion

// #region value-matching

func matchString(expected interface{}, actual string) bool {
	s, ok := expected.(string)
	if !ok {
		return false
	}
	return strings.EqualFold(s, actual)
}

func matchBool(expected interface{}, actual bool) bool {
	b, ok := expected.(bool)
	return ok && b == actual
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func equalValues(expected, actual interface{}) bool {
	if ef, ok := asFloat(expected); ok {
		af, okA := asFloat(actual)
		return okA && math.Abs(ef-af) < 1e-9
	}
	if es, ok := expected.(string); ok {
		as, okA := actual.(string)
		return okA && strings.EqualFold(es, as)
	}
	if eb, ok := expected.(bool); ok {
		ab, okA := actual.(bool)
		return okA && eb == ab
	}
	return false
}

// #endregion

// #region time-matching

// matchTimeRange checks "HH:MM-HH:MM"; ranges may wrap across midnight.
func matchTimeRange(expected interface{}, now time.Time) bool {
	raw, ok := expected.(string)
	if !ok {
		return false
	}
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return false
	}
	start, okS := parseClock(strings.TrimSpace(parts[0]))
	end, okE := parseClock(strings.TrimSpace(parts[1]))
	if !okS || !okE {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur <= end
	}
	// Crosses midnight.
	return cur >= start || cur <= end
}

// matchExactTime checks "HH:MM" within ±15 minutes, wrapping across midnight.
func matchExactTime(expected interface{}, now time.Time) bool {
	raw, ok := expected.(string)
	if !ok {
		return false
	}
	target, okT := parseClock(strings.TrimSpace(raw))
	if !okT {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	diff := cur - target
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 1440 - diff; wrapped < diff {
		diff = wrapped
	}
	return diff <= exactTimeToleranceMinutes
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func matchDayOfWeek(expected interface{}, dow int) bool {
	if n, ok := asFloat(expected); ok {
		return int(n) == dow
	}
	if s, ok := expected.(string); ok {
		want, known := dayNames[strings.ToLower(strings.TrimSpace(s))]
		return known && want == dow
	}
	return false
}

// #endregion

// #region wifi-matching

// matchWifi compares SSIDs; the sentinel values "disconnected" and
// "not_connected" match an empty SSID.
func matchWifi(expected interface{}, actual string) bool {
	s, ok := expected.(string)
	if !ok {
		return false
	}
	switch strings.ToLower(s) {
	case "disconnected", "not_connected":
		return actual == ""
	}
	return actual != "" && strings.EqualFold(s, actual)
}

// #endregion

// #region humanize

func humanizeActivity(a extraction.Activity) string {
	switch a {
	case extraction.ActivityStill:
		return "stationary"
	case extraction.ActivityWalking:
		return "walking"
	case extraction.ActivityRunning:
		return "running"
	case extraction.ActivityInVehicle:
		return "driving"
	case extraction.ActivityOnBicycle:
		return "cycling"
	case extraction.ActivityOnFoot:
		return "on foot"
	default:
		return strings.ToLower(string(a))
	}
}

func humanizeToken(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func wifiReason(ssid string) string {
	if ssid == "" {
		return "WiFi disconnected"
	}
	return fmt.Sprintf("Connected to %s", ssid)
}

func dayTypeReason(weekday bool) string {
	if weekday {
		return "It is a weekday"
	}
	return "It is the weekend"
}

// #endregion
