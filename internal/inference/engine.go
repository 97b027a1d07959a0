package inference

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
	"github.com/danielpatrickdp/context-scheduler/internal/rules"
	"github.com/danielpatrickdp/context-scheduler/internal/search"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #endregion

// #region engine-struct

// Engine composes extraction, the rule catalog, the matcher, the timing
// optimizer, and the schedule search into one inference surface.
//
// Concurrency: inference calls hold the shared lock for reading for their
// whole duration, so each call sees a consistent snapshot of rule weights
// and timing slots. Feedback application (learning.Service) takes the same
// lock for writing.
type Engine struct {
	mu        *sync.RWMutex
	catalog   *rules.Store
	slots     *timing.Store
	scheduler *search.Scheduler
	threshold float64
}

// NewEngine wires an engine over the shared stores. mu is the single
// reader-writer lock shared with the learning service and catalog mutators.
func NewEngine(mu *sync.RWMutex, catalog *rules.Store, slots *timing.Store, scheduler *search.Scheduler) *Engine {
	return &Engine{
		mu:        mu,
		catalog:   catalog,
		slots:     slots,
		scheduler: scheduler,
		threshold: SuggestionThreshold,
	}
}

// #endregion

// #region infer

// Infer evaluates all active rules against one snapshot and returns ranked
// suggestions. enableSearch selects joint A* optimization over per-candidate
// greedy timing. Cancellation is checked between rule evaluations and inside
// the search loop.
func (e *Engine) Infer(ctx context.Context, c extraction.Context, enableSearch bool) (Response, error) {
	if err := extraction.Validate(c); err != nil {
		return Response{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	ec := extraction.Extract(c)
	contextKey := extraction.ContextKey(ec)
	active := e.catalog.ListActive()

	suggestions := make([]Suggestion, 0, len(active))
	for _, r := range active {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		match := rules.Match(r, ec, c.Extras)
		score := match.BaseScore * r.Weight
		if score < e.threshold {
			log.Printf("[INFER] rule %d (%s) suppressed: base=%.2f weight=%.2f score=%.2f < %.2f",
				r.ID, r.Name, match.BaseScore, r.Weight, score, e.threshold)
			continue
		}

		taskType := timing.TaskTypeFor(r.Name)
		options := e.slots.Evaluate(taskType, contextKey)

		suggestions = append(suggestions, Suggestion{
			RuleID:            r.ID,
			TaskName:          r.Name,
			TaskDescription:   r.Description,
			SuggestionScore:   round2(score),
			BaseScore:         match.BaseScore,
			Reasoning:         match.Reasoning(),
			MatchedConditions: match.MatchedConditions,
			TimingOptions:     options,
		})
	}

	mode := ModeGreedy
	if enableSearch {
		mode = ModeSearch
		var err error
		suggestions, err = e.applySearch(ctx, suggestions)
		if err != nil {
			return Response{}, err
		}
	} else {
		for i := range suggestions {
			best, ok := timing.ArgmaxUCB(suggestions[i].TimingOptions)
			if !ok {
				continue
			}
			suggestions[i].ChosenLeadTime = best.LeadTimeMinutes
			suggestions[i].TimingConfidence = best.Confidence
			suggestions[i].Reasoning += " | " + timingExplanation(best, suggestions[i].TimingOptions)
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].SuggestionScore != suggestions[j].SuggestionScore {
			return suggestions[i].SuggestionScore > suggestions[j].SuggestionScore
		}
		return suggestions[i].RuleID < suggestions[j].RuleID
	})

	return Response{
		Timestamp:           time.Now().UTC(),
		ContextSummary:      summarize(ec, mode),
		SuggestedTasks:      suggestions,
		TotalRulesEvaluated: len(active),
	}, nil
}

// #endregion

// #region search-integration

// applySearch runs the A* scheduler over the candidate × timing matrix and
// rewrites each suggestion's chosen lead time from the joint schedule.
func (e *Engine) applySearch(ctx context.Context, suggestions []Suggestion) ([]Suggestion, error) {
	if len(suggestions) == 0 {
		return suggestions, nil
	}

	candidates := make([]search.Candidate, 0, len(suggestions))
	for _, s := range suggestions {
		options := make([]search.Option, 0, len(s.TimingOptions))
		for _, o := range s.TimingOptions {
			options = append(options, search.Option{
				LeadTimeMinutes: o.LeadTimeMinutes,
				ExpectedReward:  s.SuggestionScore * o.Confidence,
			})
		}
		candidates = append(candidates, search.Candidate{
			RuleID:  s.RuleID,
			Title:   s.TaskName,
			Options: options,
		})
	}

	result, err := e.scheduler.Optimize(ctx, candidates)
	if err != nil {
		return nil, err
	}

	meta := SearchMetadata{
		Algorithm:           "A* branch-and-bound",
		TotalExpectedReward: round3(result.TotalExpectedReward),
		NodesExplored:       result.NodesExplored,
		SearchCompleted:     result.SearchCompleted,
		SearchTimeMs:        result.SearchTimeMs,
		OptimizationQuality: string(result.Quality),
	}

	kept := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		lead, chosen := result.ChosenLeadTime(s.RuleID)
		if !chosen {
			log.Printf("[INFER] rule %d (%s) skipped by schedule optimizer", s.RuleID, s.TaskName)
			continue
		}
		s.ChosenLeadTime = lead
		for _, o := range s.TimingOptions {
			if o.LeadTimeMinutes == lead {
				s.TimingConfidence = o.Confidence
				s.Reasoning += " | " + timingExplanation(o, s.TimingOptions)
				break
			}
		}
		m := meta
		s.SearchMetadata = &m
		kept = append(kept, s)
	}
	return kept, nil
}

// #endregion

// #region summary

func summarize(ec extraction.ExtractedContext, mode string) ContextSummary {
	wifi := ec.WifiSSID
	if wifi == "" {
		wifi = "disconnected"
	}
	return ContextSummary{
		Activity:         string(ec.RawActivity),
		LocationCategory: string(ec.LocationCategory),
		TimeOfDay:        string(ec.TimeOfDay),
		CarConnected:     ec.CarConnected,
		Wifi:             wifi,
		OptimizationMode: mode,
	}
}

// #endregion

// #region timing-explanation

// timingExplanation renders the chosen window with its evidence strength.
func timingExplanation(chosen timing.Option, all []timing.Option) string {
	evidence := chosen.TotalTriggers

	var note string
	switch {
	case evidence == 0:
		note = "no history yet, using initial estimate"
	case evidence < 5:
		note = fmt.Sprintf("still learning from %d interactions", evidence)
	default:
		note = fmt.Sprintf("based on %d interactions", evidence)
	}

	return fmt.Sprintf("Notify %d min before (confidence %.0f%%, %s)",
		chosen.LeadTimeMinutes, chosen.Confidence*100, note)
}

// #endregion

// #region catalog-surface

// ListRules returns every rule under a read lock.
func (e *Engine) ListRules() []rules.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.ListAll()
}

// GetRule returns one rule under a read lock.
func (e *Engine) GetRule(id int64) (rules.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Get(id)
}

// CreateRule adds a rule to the catalog under the write lock.
func (e *Engine) CreateRule(r rules.Rule) (rules.Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Create(r)
}

// DeactivateRule retires a rule under the write lock.
func (e *Engine) DeactivateRule(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Deactivate(id)
}

// #endregion

// #region rounding

func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }

func round3(v float64) float64 { return float64(int(v*1000+0.5)) / 1000 }

// #endregion
