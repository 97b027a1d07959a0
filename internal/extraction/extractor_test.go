package extraction

import (
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestExtract_MorningCommute(t *testing.T) {
	c := Context{
		Timestamp:             ts(t, "2025-12-01T08:30:00"), // Monday
		Activity:              ActivityInVehicle,
		SpeedKmh:              45.0,
		CarBluetoothConnected: true,
		LocationVector:        "leaving_home",
	}

	ec := Extract(c)

	if ec.LocationCategory != LocCommute {
		t.Errorf("location = %q, want commute", ec.LocationCategory)
	}
	if ec.ActivityState != StateTraveling {
		t.Errorf("activity state = %q, want traveling", ec.ActivityState)
	}
	if ec.TimeOfDay != Morning {
		t.Errorf("time of day = %q, want morning", ec.TimeOfDay)
	}
	if !ec.IsWeekday || ec.DayOfWeek != 1 {
		t.Errorf("day = %d weekday=%v, want Monday weekday", ec.DayOfWeek, ec.IsWeekday)
	}
	// Car BT present and location vector present; all primaries accounted for.
	if ec.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %.2f, want 1.0", ec.ConfidenceScore)
	}
}

func TestExtract_ActivityStateMapping(t *testing.T) {
	cases := []struct {
		activity Activity
		want     ActivityState
	}{
		{ActivityStill, StateStationary},
		{ActivityWalking, StateWalking},
		{ActivityRunning, StateWalking},
		{ActivityOnFoot, StateWalking},
		{ActivityInVehicle, StateTraveling},
		{ActivityOnBicycle, StateTraveling},
		{ActivityUnknown, StateUnknown},
	}

	for _, tc := range cases {
		ec := Extract(Context{
			Timestamp: ts(t, "2025-12-01T08:30:00"),
			Activity:  tc.activity,
		})
		if ec.ActivityState != tc.want {
			t.Errorf("%s → %q, want %q", tc.activity, ec.ActivityState, tc.want)
		}
	}
}

func TestExtract_TimeOfDayBuckets(t *testing.T) {
	cases := []struct {
		hour string
		want TimeOfDay
	}{
		{"00:30:00", Morning},
		{"11:59:00", Morning},
		{"12:00:00", Afternoon},
		{"16:59:00", Afternoon},
		{"17:00:00", Evening},
		{"20:59:00", Evening},
		{"21:00:00", Night},
		{"23:30:00", Night},
	}

	for _, tc := range cases {
		ec := Extract(Context{
			Timestamp: ts(t, "2025-12-01T"+tc.hour),
			Activity:  ActivityStill,
		})
		if ec.TimeOfDay != tc.want {
			t.Errorf("hour %s → %q, want %q", tc.hour, ec.TimeOfDay, tc.want)
		}
	}
}

func TestExtract_LocationRules(t *testing.T) {
	base := ts(t, "2025-12-01T09:00:00")

	cases := []struct {
		name string
		c    Context
		want LocationCategory
	}{
		{
			name: "home wifi while slow",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 0, WifiSSID: "HomeWiFi"},
			want: LocHome,
		},
		{
			name: "home pattern case-insensitive",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 2, WifiSSID: "MyHomeNet"},
			want: LocHome,
		},
		{
			name: "office wifi",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 1, WifiSSID: "OfficeWiFi"},
			want: LocWork,
		},
		{
			name: "work pattern",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 1, WifiSSID: "work-guest"},
			want: LocWork,
		},
		{
			name: "campus pattern",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 0, WifiSSID: "University-Net"},
			want: LocCampus,
		},
		{
			name: "walking with no wifi",
			c:    Context{Timestamp: base, Activity: ActivityWalking, SpeedKmh: 4},
			want: LocNearHome,
		},
		{
			name: "parked with car bluetooth",
			c:    Context{Timestamp: base, Activity: ActivityStill, SpeedKmh: 0, CarBluetoothConnected: true},
			want: LocInParkedVehicle,
		},
		{
			name: "commute wins over wifi match",
			c: Context{
				Timestamp: base, Activity: ActivityInVehicle, SpeedKmh: 50,
				CarBluetoothConnected: true, WifiSSID: "HomeWiFi",
			},
			want: LocCommute,
		},
		{
			name: "fast without car bluetooth is unknown",
			c:    Context{Timestamp: base, Activity: ActivityInVehicle, SpeedKmh: 50},
			want: LocUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Extract(tc.c).LocationCategory; got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtract_ConfidencePenalties(t *testing.T) {
	base := ts(t, "2025-12-01T09:00:00")

	// All three primary signals missing.
	ec := Extract(Context{Timestamp: base, Activity: ActivityUnknown})
	if !approx(ec.ConfidenceScore, 0.4) {
		t.Errorf("confidence = %.2f, want 0.4", ec.ConfidenceScore)
	}

	// Wifi present covers the connectivity signal.
	ec = Extract(Context{Timestamp: base, Activity: ActivityUnknown, WifiSSID: "HomeWiFi"})
	if !approx(ec.ConfidenceScore, 0.6) {
		t.Errorf("confidence = %.2f, want 0.6", ec.ConfidenceScore)
	}

	// Car bluetooth also covers the connectivity signal.
	ec = Extract(Context{Timestamp: base, Activity: ActivityStill, CarBluetoothConnected: true, LocationVector: "home"})
	if ec.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %.2f, want 1.0", ec.ConfidenceScore)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	c := Context{
		Timestamp:             ts(t, "2025-12-01T08:30:00"),
		Activity:              ActivityInVehicle,
		SpeedKmh:              45.0,
		CarBluetoothConnected: true,
		LocationVector:        "leaving_home",
	}
	if Extract(c) != Extract(c) {
		t.Error("extraction is not idempotent")
	}
}

func TestContextKey_Determinism(t *testing.T) {
	a := Extract(Context{
		Timestamp:             ts(t, "2025-12-01T08:30:00"),
		Activity:              ActivityInVehicle,
		SpeedKmh:              45.0,
		CarBluetoothConnected: true,
	})
	b := Extract(Context{
		Timestamp:             ts(t, "2025-12-08T11:10:00"), // different Monday, different speed
		Activity:              ActivityInVehicle,
		SpeedKmh:              72.5,
		CarBluetoothConnected: true,
	})

	keyA, keyB := ContextKey(a), ContextKey(b)
	if keyA != keyB {
		t.Errorf("keys differ: %q vs %q", keyA, keyB)
	}
	if keyA != "traveling_morning_weekday_commute" {
		t.Errorf("key = %q", keyA)
	}
}

func TestValidate(t *testing.T) {
	good := Context{Timestamp: ts(t, "2025-12-01T08:30:00"), Activity: ActivityStill}
	if err := Validate(good); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cases := []Context{
		{Activity: ActivityStill}, // zero timestamp
		{Timestamp: ts(t, "2025-12-01T08:30:00"), Activity: ActivityStill, SpeedKmh: -1}, // negative speed
		{Timestamp: ts(t, "2025-12-01T08:30:00"), Activity: "FLYING"},                    // bad vocabulary
		{Timestamp: ts(t, "2025-12-01T08:30:00")},                                        // missing activity
	}
	for i, c := range cases {
		if err := Validate(c); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
