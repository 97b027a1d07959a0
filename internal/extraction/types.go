package extraction

// #region imports
import "time"

// #endregion

// #region activity

// Activity is the raw motion classification reported by the device.
type Activity string

const (
	ActivityStill     Activity = "STILL"
	ActivityWalking   Activity = "WALKING"
	ActivityRunning   Activity = "RUNNING"
	ActivityOnBicycle Activity = "ON_BICYCLE"
	ActivityInVehicle Activity = "IN_VEHICLE"
	ActivityOnFoot    Activity = "ON_FOOT"
	ActivityUnknown   Activity = "UNKNOWN"
)

// knownActivities is the accepted raw activity vocabulary.
var knownActivities = map[Activity]bool{
	ActivityStill:     true,
	ActivityWalking:   true,
	ActivityRunning:   true,
	ActivityOnBicycle: true,
	ActivityInVehicle: true,
	ActivityOnFoot:    true,
	ActivityUnknown:   true,
}

// #endregion

// #region activity-state

// ActivityState is the normalized motion category used for matching and slot keys.
type ActivityState string

const (
	StateStationary ActivityState = "stationary"
	StateTraveling  ActivityState = "traveling"
	StateWalking    ActivityState = "walking"
	StateUnknown    ActivityState = "unknown"
)

// #endregion

// #region time-of-day

// TimeOfDay buckets the hour of day.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"   // hour < 12
	Afternoon TimeOfDay = "afternoon" // hour < 17
	Evening   TimeOfDay = "evening"   // hour < 21
	Night     TimeOfDay = "night"
)

// #endregion

// #region location-category

// LocationCategory is the inferred place category.
type LocationCategory string

const (
	LocHome            LocationCategory = "home"
	LocWork            LocationCategory = "work"
	LocCampus          LocationCategory = "campus"
	LocCommute         LocationCategory = "commute"
	LocNearHome        LocationCategory = "near_home"
	LocInParkedVehicle LocationCategory = "in_parked_vehicle"
	LocUnknown         LocationCategory = "unknown"
)

// #endregion

// #region context

// Context is one raw sensor snapshot as received from the device.
// Unknown extras fields are preserved untouched.
type Context struct {
	Timestamp             time.Time              `json:"timestamp"`
	Activity              Activity               `json:"activity"`
	SpeedKmh              float64                `json:"speed_kmh"`
	CarBluetoothConnected bool                   `json:"car_bluetooth_connected"`
	WifiSSID              string                 `json:"wifi_ssid,omitempty"`
	LocationVector        string                 `json:"location_vector,omitempty"`
	Extras                map[string]interface{} `json:"extras,omitempty"`
}

// #endregion

// #region extracted-context

// ExtractedContext is the normalized categorical view of a Context.
type ExtractedContext struct {
	Timestamp        time.Time        `json:"timestamp"`
	TimeOfDay        TimeOfDay        `json:"time_of_day"`
	DayOfWeek        int              `json:"day_of_week"` // 1=Monday .. 7=Sunday
	IsWeekday        bool             `json:"is_weekday"`
	IsWeekend        bool             `json:"is_weekend"`
	Hour             int              `json:"hour"`
	Minute           int              `json:"minute"`
	LocationCategory LocationCategory `json:"location_category"`
	ActivityState    ActivityState    `json:"activity_state"`
	RawActivity      Activity         `json:"raw_activity"`
	CarConnected     bool             `json:"car_connected"`
	WifiSSID         string           `json:"wifi_ssid,omitempty"`
	LocationVector   string           `json:"location_vector,omitempty"`
	SpeedKmh         float64          `json:"speed_kmh"`
	ConfidenceScore  float64          `json:"confidence_score"`
}

// #endregion
