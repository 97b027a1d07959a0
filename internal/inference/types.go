package inference

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #endregion

// #region thresholds

// SuggestionThreshold is the minimum suggestion score (base score × rule
// weight) for a rule to surface.
const SuggestionThreshold = 0.60

// #endregion

// #region optimization-mode

const (
	ModeGreedy = "greedy"
	ModeSearch = "A* search"
)

// #endregion

// #region suggestion

// SearchMetadata describes how the schedule optimizer arrived at a choice.
type SearchMetadata struct {
	Algorithm           string  `json:"search_algorithm"`
	TotalExpectedReward float64 `json:"total_expected_reward"`
	NodesExplored       int     `json:"nodes_explored"`
	SearchCompleted     bool    `json:"search_completed"`
	SearchTimeMs        float64 `json:"search_time_ms"`
	OptimizationQuality string  `json:"optimization_quality"`
}

// Suggestion is one surfaced task reminder with its chosen notification timing.
type Suggestion struct {
	RuleID            int64                  `json:"rule_id"`
	TaskName          string                 `json:"task_name"`
	TaskDescription   string                 `json:"task_description,omitempty"`
	SuggestionScore   float64                `json:"suggestion_score"`
	BaseScore         float64                `json:"base_score"`
	Reasoning         string                 `json:"reasoning"`
	MatchedConditions map[string]interface{} `json:"matched_conditions"`
	TimingOptions     []timing.Option        `json:"timing_options"`
	ChosenLeadTime    int                    `json:"chosen_lead_time"`
	TimingConfidence  float64                `json:"timing_confidence"`
	SearchMetadata    *SearchMetadata        `json:"search_metadata,omitempty"`
}

// #endregion

// #region response

// ContextSummary is the condensed view of the evaluated context.
type ContextSummary struct {
	Activity         string `json:"activity"`
	LocationCategory string `json:"location_category"`
	TimeOfDay        string `json:"time_of_day"`
	CarConnected     bool   `json:"car_connected"`
	Wifi             string `json:"wifi"`
	OptimizationMode string `json:"optimization_mode"`
}

// Response is the full inference result.
type Response struct {
	Timestamp           time.Time      `json:"timestamp"`
	ContextSummary      ContextSummary `json:"context_summary"`
	SuggestedTasks      []Suggestion   `json:"suggested_tasks"`
	TotalRulesEvaluated int            `json:"total_rules_evaluated"`
}

// #endregion
