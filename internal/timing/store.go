package timing

// #region imports
import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// #endregion

// #region schema

const slotsSchema = `
CREATE TABLE IF NOT EXISTS timing_slots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    task_type     TEXT NOT NULL,
    context_key   TEXT NOT NULL,
    lead_time     INTEGER NOT NULL,
    alpha         REAL NOT NULL DEFAULT 1,
    beta          REAL NOT NULL DEFAULT 1,
    total_triggers INTEGER NOT NULL DEFAULT 0,
    last_updated  TEXT,
    UNIQUE(task_type, context_key, lead_time)
);
`

const slotsIndex = `
CREATE INDEX IF NOT EXISTS idx_timing_slots_lookup
ON timing_slots(task_type, context_key);
`

// #endregion

// #region store-struct

// Store keeps Beta timing slots in SQLite with a write-through in-memory map.
// Evaluation reads never mutate: unmaterialized slots are served as the
// uniform prior and only written once feedback first references them.
// Callers serialize access (the engine holds a single reader-writer lock).
type Store struct {
	db        *sql.DB
	slots     map[string]Slot
	leadTimes []int
}

// NewStore initializes the timing_slots table and loads existing slots.
// leadTimes nil means DefaultLeadTimes.
func NewStore(db *sql.DB, leadTimes []int) (*Store, error) {
	if _, err := db.Exec(slotsSchema); err != nil {
		return nil, fmt.Errorf("create timing_slots table: %w", err)
	}
	if _, err := db.Exec(slotsIndex); err != nil {
		return nil, fmt.Errorf("create timing_slots index: %w", err)
	}

	if len(leadTimes) == 0 {
		leadTimes = DefaultLeadTimes
	}
	sorted := append([]int(nil), leadTimes...)
	sort.Ints(sorted)

	s := &Store{db: db, slots: make(map[string]Slot), leadTimes: sorted}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// LeadTimes returns the configured candidate set, ascending.
func (s *Store) LeadTimes() []int {
	return append([]int(nil), s.leadTimes...)
}

// #endregion

// #region load

func (s *Store) load() error {
	rows, err := s.db.Query(`
		SELECT task_type, context_key, lead_time, alpha, beta, total_triggers, last_updated
		FROM timing_slots`)
	if err != nil {
		return fmt.Errorf("load timing slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot Slot
		var updated sql.NullString
		if err := rows.Scan(&slot.TaskType, &slot.ContextKey, &slot.LeadTimeMinutes,
			&slot.Alpha, &slot.Beta, &slot.TotalTriggers, &updated); err != nil {
			return fmt.Errorf("scan timing slot: %w", err)
		}
		if updated.Valid {
			slot.LastUpdated, _ = time.Parse(time.RFC3339Nano, updated.String)
		}
		s.slots[slotKey(slot.TaskType, slot.ContextKey, slot.LeadTimeMinutes)] = slot
	}
	return rows.Err()
}

func slotKey(taskType, contextKey string, lead int) string {
	return fmt.Sprintf("%s|%s|%d", taskType, contextKey, lead)
}

// #endregion

// #region peek

// Peek returns the slot for a triple, or the uniform prior if it has never
// been materialized. The second return reports materialization.
func (s *Store) Peek(taskType, contextKey string, lead int) (Slot, bool) {
	if slot, ok := s.slots[slotKey(taskType, contextKey, lead)]; ok {
		return slot, true
	}
	return Slot{
		TaskType:        taskType,
		ContextKey:      contextKey,
		LeadTimeMinutes: lead,
		Alpha:           1,
		Beta:            1,
	}, false
}

// #endregion

// #region evaluate

// Evaluate scores every candidate lead time for a (task_type, context_key)
// pair. Read-only; options come back sorted by ascending lead time.
func (s *Store) Evaluate(taskType, contextKey string) []Option {
	options := make([]Option, 0, len(s.leadTimes))
	for _, lead := range s.leadTimes {
		slot, _ := s.Peek(taskType, contextKey, lead)
		conf := slot.Confidence()
		unc := 1 / math.Sqrt(slot.Alpha+slot.Beta)
		options = append(options, Option{
			LeadTimeMinutes: lead,
			Confidence:      conf,
			Uncertainty:     unc,
			UCB:             conf + ExplorationFactor*unc,
			Alpha:           slot.Alpha,
			Beta:            slot.Beta,
			TotalTriggers:   slot.TotalTriggers,
		})
	}
	return options
}

// #endregion

// #region update

// Update applies one outcome to a slot, materializing it if needed.
// Accept increments alpha; reject increments beta. The in-memory copy is
// only touched after the row write succeeds, so a failed write leaves the
// store at its pre-call value.
func (s *Store) Update(taskType, contextKey string, lead int, accepted bool) (old, updated Slot, err error) {
	slot, materialized := s.Peek(taskType, contextKey, lead)
	old = slot

	if accepted {
		slot.Alpha++
	} else {
		slot.Beta++
	}
	slot.TotalTriggers++
	slot.LastUpdated = time.Now().UTC()

	if materialized {
		_, err = s.db.Exec(`
			UPDATE timing_slots SET alpha = ?, beta = ?, total_triggers = ?, last_updated = ?
			WHERE task_type = ? AND context_key = ? AND lead_time = ?`,
			slot.Alpha, slot.Beta, slot.TotalTriggers,
			slot.LastUpdated.Format(time.RFC3339Nano),
			taskType, contextKey, lead)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO timing_slots (task_type, context_key, lead_time, alpha, beta, total_triggers, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			taskType, contextKey, lead, slot.Alpha, slot.Beta, slot.TotalTriggers,
			slot.LastUpdated.Format(time.RFC3339Nano))
	}
	if err != nil {
		return Slot{}, Slot{}, fmt.Errorf("write timing slot %s/%s/%d: %w", taskType, contextKey, lead, err)
	}

	s.slots[slotKey(taskType, contextKey, lead)] = slot
	return old, slot, nil
}

// Restore rolls a slot back to a previous value after a failed multi-step
// mutation. In-memory state is restored unconditionally; the row write is
// best-effort and its error is returned for logging.
func (s *Store) Restore(slot Slot) error {
	key := slotKey(slot.TaskType, slot.ContextKey, slot.LeadTimeMinutes)
	if slot.FeedbackCount() == 0 && slot.LastUpdated.IsZero() {
		// Slot was never materialized before the failed call.
		delete(s.slots, key)
		_, err := s.db.Exec(`DELETE FROM timing_slots WHERE task_type = ? AND context_key = ? AND lead_time = ?`,
			slot.TaskType, slot.ContextKey, slot.LeadTimeMinutes)
		return err
	}

	s.slots[key] = slot
	_, err := s.db.Exec(`
		UPDATE timing_slots SET alpha = ?, beta = ?, total_triggers = ?, last_updated = ?
		WHERE task_type = ? AND context_key = ? AND lead_time = ?`,
		slot.Alpha, slot.Beta, slot.TotalTriggers,
		slot.LastUpdated.Format(time.RFC3339Nano),
		slot.TaskType, slot.ContextKey, slot.LeadTimeMinutes)
	return err
}

// #endregion

// #region list

// List returns all materialized slots, optionally filtered, ordered by
// descending confidence.
func (s *Store) List(taskType, contextKey string, minFeedback int) []Slot {
	out := make([]Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		if taskType != "" && slot.TaskType != taskType {
			continue
		}
		if contextKey != "" && slot.ContextKey != contextKey {
			continue
		}
		if slot.FeedbackCount() < minFeedback {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Confidence(), out[j].Confidence()
		if ci != cj {
			return ci > cj
		}
		return out[i].LeadTimeMinutes < out[j].LeadTimeMinutes
	})
	return out
}

// #endregion
