package learning

// #region imports
import (
	"math"
	"sort"

	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #endregion

// #region summary-types

// SlotSummary is one learned distribution with its derived statistics.
type SlotSummary struct {
	TaskType        string  `json:"task_type"`
	ContextKey      string  `json:"context_key"`
	LeadTimeMinutes int     `json:"lead_time_minutes"`
	Confidence      float64 `json:"confidence"`
	Uncertainty     float64 `json:"uncertainty"`
	Alpha           float64 `json:"alpha"`
	Beta            float64 `json:"beta"`
	FeedbackCount   int     `json:"feedback_count"`
	TotalTriggers   int     `json:"total_triggers"`
}

// Summary bundles all matching distributions.
type Summary struct {
	TotalDistributions int           `json:"total_distributions"`
	Distributions      []SlotSummary `json:"distributions"`
}

// #endregion

// #region summarize

// Summarize lists learned distributions, most confident first, optionally
// filtered by task type, context key, and minimum feedback count.
func (s *Service) Summarize(taskType, contextKey string, minFeedback int) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.slots.List(taskType, contextKey, minFeedback)
	out := make([]SlotSummary, 0, len(slots))
	for _, slot := range slots {
		out = append(out, summarizeSlot(slot))
	}
	return Summary{TotalDistributions: len(out), Distributions: out}
}

func summarizeSlot(slot timing.Slot) SlotSummary {
	return SlotSummary{
		TaskType:        slot.TaskType,
		ContextKey:      slot.ContextKey,
		LeadTimeMinutes: slot.LeadTimeMinutes,
		Confidence:      slot.Confidence(),
		Uncertainty:     1 / math.Sqrt(slot.Alpha+slot.Beta),
		Alpha:           slot.Alpha,
		Beta:            slot.Beta,
		FeedbackCount:   slot.FeedbackCount(),
		TotalTriggers:   slot.TotalTriggers,
	}
}

// #endregion

// #region explanation-data

// CredibleInterval is the approximate 95% interval of a Beta distribution.
type CredibleInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// WindowExplanation describes what is known about one lead-time window.
type WindowExplanation struct {
	LeadTimeMinutes  int              `json:"lead_time_minutes"`
	Confidence       float64          `json:"confidence"`
	Alpha            float64          `json:"alpha"`
	Beta             float64          `json:"beta"`
	FeedbackCount    int              `json:"feedback_count"`
	CredibleInterval CredibleInterval `json:"credible_interval_95"`
	WellLearned      bool             `json:"well_learned"`
}

// Explanation exposes the full learned picture for one (task_type, context).
type Explanation struct {
	TaskType              string              `json:"task_type"`
	ContextKey            string              `json:"context_key"`
	RecommendedLeadTime   int                 `json:"recommended_lead_time"`
	RecommendedConfidence float64             `json:"recommended_confidence"`
	Windows               []WindowExplanation `json:"windows"`
	TotalSamples          int                 `json:"total_samples"`
	WellTrained           bool                `json:"well_trained"`
}

// wellLearnedThreshold is the feedback count past which a window's estimate
// is treated as calibrated.
const wellLearnedThreshold = 5

// Explain reports per-window distributions for the context a snapshot falls
// into, with 95% credible intervals (normal approximation of the Beta).
func (s *Service) Explain(taskType string, snapshot extraction.Context) (Explanation, error) {
	if err := extraction.Validate(snapshot); err != nil {
		return Explanation{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	contextKey := extraction.ContextKey(extraction.Extract(snapshot))

	windows := make([]WindowExplanation, 0, 4)
	total := 0
	for _, lead := range s.slots.LeadTimes() {
		slot, _ := s.slots.Peek(taskType, contextKey, lead)
		conf := slot.Confidence()
		totalMass := slot.Alpha + slot.Beta
		variance := (slot.Alpha * slot.Beta) / (totalMass * totalMass * (totalMass + 1))
		std := math.Sqrt(variance)

		w := WindowExplanation{
			LeadTimeMinutes: lead,
			Confidence:      conf,
			Alpha:           slot.Alpha,
			Beta:            slot.Beta,
			FeedbackCount:   slot.FeedbackCount(),
			CredibleInterval: CredibleInterval{
				Lower: math.Max(0, conf-1.96*std),
				Upper: math.Min(1, conf+1.96*std),
			},
			WellLearned: slot.FeedbackCount() >= wellLearnedThreshold,
		}
		windows = append(windows, w)
		total += w.FeedbackCount
	}

	// Most confident window wins; equal confidence prefers the shorter lead.
	sorted := append([]WindowExplanation(nil), windows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	best := sorted[0]

	wellTrained := false
	for _, w := range windows {
		if w.WellLearned {
			wellTrained = true
			break
		}
	}

	return Explanation{
		TaskType:              taskType,
		ContextKey:            contextKey,
		RecommendedLeadTime:   best.LeadTimeMinutes,
		RecommendedConfidence: best.Confidence,
		Windows:               windows,
		TotalSamples:          total,
		WellTrained:           wellTrained,
	}, nil
}

// #endregion
