package learning

// #region imports
import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/danielpatrickdp/context-scheduler/internal/auditlog"
	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
	"github.com/danielpatrickdp/context-scheduler/internal/rules"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #endregion

// #region deltas

const (
	// AcceptDelta rewards a rule whose suggestion was accepted.
	AcceptDelta = 0.05
	// RejectDelta penalizes a rejected suggestion. The asymmetry is
	// intentional: a false-positive notification costs more than a
	// missed reminder.
	RejectDelta = -0.10
)

// #endregion

// #region errors

// ErrInvalidOutcome indicates feedback with an outcome outside {accept, reject}.
var ErrInvalidOutcome = errors.New("invalid feedback outcome")

// ErrPersistence indicates the mutation could not be stored after a retry;
// in-memory state has been rolled back.
var ErrPersistence = errors.New("persistence failure")

// #endregion

// #region service

// Service applies accept/reject feedback to rule weights and Beta timing
// slots. Calls are serialized by the shared engine lock (taken for writing),
// so inference readers always see either the full mutation or none of it.
type Service struct {
	mu      *sync.RWMutex
	db      *sql.DB
	catalog *rules.Store
	slots   *timing.Store
}

// NewService wires the learning loop over the shared stores. mu must be the
// same reader-writer lock the inference engine reads under.
func NewService(mu *sync.RWMutex, db *sql.DB, catalog *rules.Store, slots *timing.Store) *Service {
	return &Service{mu: mu, db: db, catalog: catalog, slots: slots}
}

// #endregion

// #region result

// Result reports what one feedback application changed.
type Result struct {
	RuleID         int64            `json:"rule_id"`
	TaskName       string           `json:"task_name"`
	Outcome        auditlog.Outcome `json:"outcome"`
	ContextKey     string           `json:"context_key"`
	ChosenLeadTime int              `json:"chosen_lead_time"`
	OldWeight      float64          `json:"old_weight"`
	NewWeight      float64          `json:"new_weight"`
	OldConfidence  float64          `json:"old_confidence"`
	NewConfidence  float64          `json:"new_confidence"`
	Alpha          float64          `json:"alpha"`
	Beta           float64          `json:"beta"`
	TotalFeedback  int              `json:"total_feedback"`
	Explanation    string           `json:"explanation"`
}

// #endregion

// #region apply-feedback

// ApplyFeedback records one outcome: the rule weight moves by the accept or
// reject delta (clamped), and the Beta slot for the chosen lead time gains
// one observation. Every persisted step is retried once; if a later step
// still fails, earlier steps are rolled back so readers never observe a
// partial update.
func (s *Service) ApplyFeedback(ruleID int64, outcome auditlog.Outcome, snapshot extraction.Context, chosenLeadTime int) (Result, error) {
	if !outcome.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if err := extraction.Validate(snapshot); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := s.catalog.Get(ruleID)
	if err != nil {
		return Result{}, err
	}
	if !rule.IsActive {
		return Result{}, fmt.Errorf("%w: rule %d is inactive", rules.ErrRuleNotFound, ruleID)
	}

	ec := extraction.Extract(snapshot)
	contextKey := extraction.ContextKey(ec)
	taskType := timing.TaskTypeFor(rule.Name)
	accepted := outcome == auditlog.OutcomeAccept

	delta := RejectDelta
	if accepted {
		delta = AcceptDelta
	}

	// Step 1: rule weight.
	var oldWeight, newWeight float64
	err = retryOnce(func() error {
		var e error
		oldWeight, newWeight, e = s.catalog.UpdateWeight(ruleID, delta)
		return e
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Step 2: timing slot.
	var oldSlot, newSlot timing.Slot
	err = retryOnce(func() error {
		var e error
		oldSlot, newSlot, e = s.slots.Update(taskType, contextKey, chosenLeadTime, accepted)
		return e
	})
	if err != nil {
		if rbErr := s.catalog.RestoreWeight(ruleID, oldWeight); rbErr != nil {
			log.Printf("[LEARN] weight rollback for rule %d also failed: %v", ruleID, rbErr)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Step 3: append-only feedback log.
	snapshotJSON, _ := json.Marshal(snapshot)
	err = retryOnce(func() error {
		_, e := auditlog.LogFeedback(s.db, auditlog.FeedbackEntry{
			RuleID:         ruleID,
			Outcome:        outcome,
			ContextKey:     contextKey,
			ChosenLeadTime: chosenLeadTime,
			SnapshotJSON:   string(snapshotJSON),
		})
		return e
	})
	if err != nil {
		if rbErr := s.slots.Restore(oldSlot); rbErr != nil {
			log.Printf("[LEARN] slot rollback also failed: %v", rbErr)
		}
		if rbErr := s.catalog.RestoreWeight(ruleID, oldWeight); rbErr != nil {
			log.Printf("[LEARN] weight rollback for rule %d also failed: %v", ruleID, rbErr)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	res := Result{
		RuleID:         ruleID,
		TaskName:       rule.Name,
		Outcome:        outcome,
		ContextKey:     contextKey,
		ChosenLeadTime: chosenLeadTime,
		OldWeight:      oldWeight,
		NewWeight:      newWeight,
		OldConfidence:  oldSlot.Confidence(),
		NewConfidence:  newSlot.Confidence(),
		Alpha:          newSlot.Alpha,
		Beta:           newSlot.Beta,
		TotalFeedback:  newSlot.FeedbackCount(),
	}
	res.Explanation = explain(res, ec)

	log.Printf("[LEARN] rule %d (%s) %s: weight %.2f→%.2f, slot %s/%d conf %.3f→%.3f",
		ruleID, rule.Name, outcome, oldWeight, newWeight, contextKey, chosenLeadTime,
		res.OldConfidence, res.NewConfidence)

	return res, nil
}

// #endregion

// #region retry

// retryOnce runs fn, retrying a single time on failure.
func retryOnce(fn func() error) error {
	if err := fn(); err != nil {
		log.Printf("[LEARN] transient persistence error, retrying: %v", err)
		return fn()
	}
	return nil
}

// #endregion

// #region explanation

func explain(r Result, ec extraction.ExtractedContext) string {
	action := "rejected"
	if r.Outcome == auditlog.OutcomeAccept {
		action = "accepted"
	}
	direction := "decreased"
	if r.NewConfidence > r.OldConfidence {
		direction = "increased"
	}

	dayType := "weekend"
	if ec.IsWeekday {
		dayType = "weekday"
	}

	base := fmt.Sprintf(
		"You %s the notification while %s on a %s %s. Timing confidence %s from %.1f%% to %.1f%%.",
		action, ec.ActivityState, dayType, ec.TimeOfDay,
		direction, r.OldConfidence*100, r.NewConfidence*100)

	switch {
	case r.TotalFeedback == 1:
		return base + " This is the first feedback for this context."
	case r.TotalFeedback < 5:
		return base + fmt.Sprintf(" Based on %d samples, still learning.", r.TotalFeedback)
	default:
		return base + fmt.Sprintf(" Based on %d samples.", r.TotalFeedback)
	}
}

// #endregion
