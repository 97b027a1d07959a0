package rules

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
)

func commuteContext(t *testing.T) extraction.ExtractedContext {
	t.Helper()
	stamp, err := time.Parse("2006-01-02T15:04:05", "2025-12-01T08:30:00")
	if err != nil {
		t.Fatal(err)
	}
	return extraction.Extract(extraction.Context{
		Timestamp:             stamp,
		Activity:              extraction.ActivityInVehicle,
		SpeedKmh:              45.0,
		CarBluetoothConnected: true,
		LocationVector:        "leaving_home",
	})
}

func TestMatch_FullMatch(t *testing.T) {
	ec := commuteContext(t)
	r := Rule{
		ID:   1,
		Name: "Get Fuel",
		TriggerCondition: map[string]interface{}{
			"activity":   "TRAVELING",
			"time_range": "07:00-10:00",
		},
	}

	res := Match(r, ec, nil)
	if res.BaseScore != 1.0 {
		t.Errorf("base score = %.2f, want 1.0", res.BaseScore)
	}
	if res.RecognizedKeys != 2 || res.MatchedKeys != 2 {
		t.Errorf("recognized=%d matched=%d", res.RecognizedKeys, res.MatchedKeys)
	}
	if _, ok := res.MatchedConditions["activity"]; !ok {
		t.Error("activity missing from matched conditions")
	}
	if res.Reasoning() == "Conditions not met" {
		t.Error("expected non-empty reasoning")
	}
}

func TestMatch_PartialMatch(t *testing.T) {
	ec := commuteContext(t)
	r := Rule{
		TriggerCondition: map[string]interface{}{
			"activity":   "TRAVELING",
			"time_range": "17:00-19:00", // evening, does not match
		},
	}

	res := Match(r, ec, nil)
	if res.BaseScore != 0.5 {
		t.Errorf("base score = %.2f, want 0.5", res.BaseScore)
	}
}

func TestMatch_NoRecognizedKeys(t *testing.T) {
	ec := commuteContext(t)
	r := Rule{
		TriggerCondition: map[string]interface{}{
			"moon_phase": "full",
		},
	}

	res := Match(r, ec, nil)
	if res.BaseScore != 0 {
		t.Errorf("base score = %.2f, want 0", res.BaseScore)
	}
	if len(res.UnknownKeys) != 1 || res.UnknownKeys[0] != "moon_phase" {
		t.Errorf("unknown keys = %v", res.UnknownKeys)
	}
}

func TestMatch_TimeRangeWrapsMidnight(t *testing.T) {
	stamp, _ := time.Parse("2006-01-02T15:04:05", "2025-12-01T23:30:00")
	ec := extraction.Extract(extraction.Context{Timestamp: stamp, Activity: extraction.ActivityStill})

	r := Rule{TriggerCondition: map[string]interface{}{"time_range": "22:00-06:00"}}
	if res := Match(r, ec, nil); res.BaseScore != 1.0 {
		t.Errorf("23:30 in 22:00-06:00 = %.2f, want 1.0", res.BaseScore)
	}

	stamp, _ = time.Parse("2006-01-02T15:04:05", "2025-12-01T05:30:00")
	ec = extraction.Extract(extraction.Context{Timestamp: stamp, Activity: extraction.ActivityStill})
	if res := Match(r, ec, nil); res.BaseScore != 1.0 {
		t.Errorf("05:30 in 22:00-06:00 = %.2f, want 1.0", res.BaseScore)
	}

	stamp, _ = time.Parse("2006-01-02T15:04:05", "2025-12-01T12:00:00")
	ec = extraction.Extract(extraction.Context{Timestamp: stamp, Activity: extraction.ActivityStill})
	if res := Match(r, ec, nil); res.BaseScore != 0 {
		t.Errorf("12:00 in 22:00-06:00 = %.2f, want 0", res.BaseScore)
	}
}

func TestMatch_ExactTimeTolerance(t *testing.T) {
	cases := []struct {
		clock string
		want  float64
	}{
		{"16:46", 1.0}, // 14 min early
		{"17:00", 1.0},
		{"17:15", 1.0}, // at tolerance edge
		{"17:16", 0},   // one past
		{"16:30", 0},
	}

	r := Rule{TriggerCondition: map[string]interface{}{"time": "17:00"}}
	for _, tc := range cases {
		stamp, _ := time.Parse("2006-01-02T15:04", "2025-12-01T"+tc.clock)
		ec := extraction.Extract(extraction.Context{Timestamp: stamp, Activity: extraction.ActivityStill})
		if res := Match(r, ec, nil); res.BaseScore != tc.want {
			t.Errorf("time %s → %.2f, want %.2f", tc.clock, res.BaseScore, tc.want)
		}
	}
}

func TestMatch_TimeAndTimeRangeAreIndependent(t *testing.T) {
	// Both keys may appear on one rule; each is checked on its own.
	stamp, _ := time.Parse("2006-01-02T15:04:05", "2025-12-01T08:30:00")
	ec := extraction.Extract(extraction.Context{Timestamp: stamp, Activity: extraction.ActivityStill})

	r := Rule{TriggerCondition: map[string]interface{}{
		"time_range": "07:00-10:00",
		"time":       "12:00",
	}}
	res := Match(r, ec, nil)
	if res.RecognizedKeys != 2 || res.MatchedKeys != 1 {
		t.Errorf("recognized=%d matched=%d, want 2/1", res.RecognizedKeys, res.MatchedKeys)
	}
}

func TestMatch_DayAndSpeedAndWifi(t *testing.T) {
	ec := commuteContext(t) // Monday 08:30, 45 km/h, no wifi

	r := Rule{TriggerCondition: map[string]interface{}{
		"day_of_week": "monday",
		"is_weekday":  true,
		"min_speed":   10.0,
		"max_speed":   100.0,
		"wifi_ssid":   "disconnected",
	}}
	res := Match(r, ec, nil)
	if res.BaseScore != 1.0 {
		t.Errorf("base score = %.2f, want 1.0 (matched %v)", res.BaseScore, res.MatchedConditions)
	}

	// Numeric day also accepted.
	r = Rule{TriggerCondition: map[string]interface{}{"day_of_week": float64(1)}}
	if res := Match(r, ec, nil); res.BaseScore != 1.0 {
		t.Errorf("numeric day score = %.2f, want 1.0", res.BaseScore)
	}
}

func TestMatch_Extras(t *testing.T) {
	ec := commuteContext(t)
	r := Rule{TriggerCondition: map[string]interface{}{
		"extras.has_upcoming_meeting": true,
	}}

	res := Match(r, ec, map[string]interface{}{"has_upcoming_meeting": true})
	if res.BaseScore != 1.0 {
		t.Errorf("extras match = %.2f, want 1.0", res.BaseScore)
	}

	res = Match(r, ec, map[string]interface{}{"has_upcoming_meeting": false})
	if res.BaseScore != 0 {
		t.Errorf("extras mismatch = %.2f, want 0", res.BaseScore)
	}

	res = Match(r, ec, nil)
	if res.BaseScore != 0 {
		t.Errorf("extras absent = %.2f, want 0", res.BaseScore)
	}
}

func TestMatch_LocationCategories(t *testing.T) {
	ec := commuteContext(t)

	r := Rule{TriggerCondition: map[string]interface{}{"location_category": "commute"}}
	if res := Match(r, ec, nil); res.BaseScore != 1.0 {
		t.Errorf("location_category = %.2f, want 1.0", res.BaseScore)
	}

	r = Rule{TriggerCondition: map[string]interface{}{"location_vector": "leaving_home"}}
	if res := Match(r, ec, nil); res.BaseScore != 1.0 {
		t.Errorf("location_vector = %.2f, want 1.0", res.BaseScore)
	}
}

func TestClampWeight(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.05, 0.10},
		{0.10, 0.10},
		{0.50, 0.50},
		{0.95, 0.95},
		{1.20, 0.95},
	}
	for _, tc := range cases {
		if got := ClampWeight(tc.in); got != tc.want {
			t.Errorf("ClampWeight(%.2f) = %.2f, want %.2f", tc.in, got, tc.want)
		}
	}
}
