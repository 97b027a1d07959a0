package search

// #region option

// Option is one timing choice for a candidate, with its expected reward
// (suggestion score × timing confidence).
type Option struct {
	LeadTimeMinutes int     `json:"lead_time_minutes"`
	ExpectedReward  float64 `json:"expected_reward"`
}

// #endregion

// #region candidate

// Candidate is one task with its possible notification timings.
type Candidate struct {
	RuleID  int64    `json:"rule_id"`
	Title   string   `json:"title"`
	Options []Option `json:"options"`
}

// #endregion

// #region assignment

// Assignment records the chosen lead time for one candidate, or a skip.
type Assignment struct {
	RuleID          int64 `json:"rule_id"`
	LeadTimeMinutes int   `json:"lead_time_minutes"`
	Skipped         bool  `json:"skipped"`
}

// #endregion

// #region result

// Quality labels how the returned schedule was obtained.
type Quality string

const (
	QualityOptimal        Quality = "optimal"
	QualityGreedyFallback Quality = "greedy_fallback"
)

// Result is the outcome of a schedule optimization run.
type Result struct {
	TotalExpectedReward float64      `json:"total_expected_reward"`
	Schedule            []Assignment `json:"schedule"`
	NodesExplored       int          `json:"nodes_explored"`
	SearchCompleted     bool         `json:"search_completed"`
	SearchTimeMs        float64      `json:"search_time_ms"`
	Quality             Quality      `json:"optimization_quality"`
}

// ChosenLeadTime returns the lead time picked for a rule, if it was scheduled.
func (r Result) ChosenLeadTime(ruleID int64) (int, bool) {
	for _, a := range r.Schedule {
		if a.RuleID == ruleID {
			if a.Skipped {
				return 0, false
			}
			return a.LeadTimeMinutes, true
		}
	}
	return 0, false
}

// #endregion
