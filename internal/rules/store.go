package rules

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// #endregion

// #region schema

const rulesSchema = `
CREATE TABLE IF NOT EXISTS rules (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL,
	description       TEXT,
	trigger_condition TEXT NOT NULL,
	weight            REAL NOT NULL DEFAULT 0.75,
	is_active         INTEGER NOT NULL DEFAULT 1,
	source            TEXT NOT NULL DEFAULT 'user',
	calendar_event_id TEXT,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
`

const rulesCalendarIndex = `
CREATE INDEX IF NOT EXISTS idx_rules_calendar_event
ON rules(calendar_event_id);
`

// #endregion

// #region store-struct

// Store is the rule catalog: SQLite-backed with a write-through in-memory map.
// It carries no business rules; weight clamping is the only invariant enforced here.
// Callers serialize access (the engine holds a single reader-writer lock).
type Store struct {
	db    *sql.DB
	rules map[int64]Rule
}

// NewStore initializes the rules table and loads the catalog into memory.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(rulesSchema); err != nil {
		return nil, fmt.Errorf("create rules table: %w", err)
	}
	if _, err := db.Exec(rulesCalendarIndex); err != nil {
		return nil, fmt.Errorf("create rules index: %w", err)
	}

	s := &Store{db: db, rules: make(map[int64]Rule)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// #endregion

// #region load

func (s *Store) load() error {
	rows, err := s.db.Query(`
		SELECT id, name, description, trigger_condition, weight, is_active,
		       source, calendar_event_id, created_at, updated_at
		FROM rules`)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return err
		}
		s.rules[r.ID] = r
	}
	return rows.Err()
}

func scanRule(rows *sql.Rows) (Rule, error) {
	var r Rule
	var desc, calendarID sql.NullString
	var active int
	var trigger, createdStr, updatedStr string

	err := rows.Scan(&r.ID, &r.Name, &desc, &trigger, &r.Weight, &active,
		&r.Source, &calendarID, &createdStr, &updatedStr)
	if err != nil {
		return Rule{}, fmt.Errorf("scan rule: %w", err)
	}

	r.Description = desc.String
	r.CalendarEventID = calendarID.String
	r.IsActive = active == 1
	if err := json.Unmarshal([]byte(trigger), &r.TriggerCondition); err != nil {
		return Rule{}, fmt.Errorf("unmarshal trigger for rule %d: %w", r.ID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return r, nil
}

// #endregion

// #region list

// ListActive returns active rules ordered by id.
func (s *Store) ListActive() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAll returns every rule, active or not, ordered by id.
func (s *Store) ListAll() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// #endregion

// #region get

// Get returns the rule with the given id.
func (s *Store) Get(id int64) (Rule, error) {
	r, ok := s.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	return r, nil
}

// FindByCalendarEvent returns the rule generated from the given calendar event, if any.
func (s *Store) FindByCalendarEvent(eventID string) (Rule, bool) {
	for _, r := range s.rules {
		if r.CalendarEventID != "" && r.CalendarEventID == eventID {
			return r, true
		}
	}
	return Rule{}, false
}

// #endregion

// #region create

// Create persists a new rule and returns it with its assigned id.
// Weight is clamped; zero weight means "use the default".
func (s *Store) Create(r Rule) (Rule, error) {
	if r.Weight == 0 {
		r.Weight = WeightDefault
	}
	r.Weight = ClampWeight(r.Weight)
	if r.Source == "" {
		r.Source = SourceUser
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	trigger, err := json.Marshal(r.TriggerCondition)
	if err != nil {
		return Rule{}, fmt.Errorf("marshal trigger: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO rules (name, description, trigger_condition, weight, is_active,
		                   source, calendar_event_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, nullIfEmpty(r.Description), string(trigger), r.Weight, boolToInt(r.IsActive),
		string(r.Source), nullIfEmpty(r.CalendarEventID),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Rule{}, fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Rule{}, fmt.Errorf("rule id: %w", err)
	}
	r.ID = id
	s.rules[id] = r
	return r, nil
}

// #endregion

// #region update-weight

// UpdateWeight applies a delta to a rule's weight, clamped to [WeightMin, WeightMax].
// The in-memory copy is only updated after the row write succeeds.
func (s *Store) UpdateWeight(id int64, delta float64) (old, updated float64, err error) {
	r, ok := s.rules[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}

	old = r.Weight
	updated = ClampWeight(old + delta)
	now := time.Now().UTC()

	_, err = s.db.Exec(`UPDATE rules SET weight = ?, updated_at = ? WHERE id = ?`,
		updated, now.Format(time.RFC3339Nano), id)
	if err != nil {
		return 0, 0, fmt.Errorf("update weight for rule %d: %w", id, err)
	}

	r.Weight = updated
	r.UpdatedAt = now
	s.rules[id] = r
	return old, updated, nil
}

// RestoreWeight rolls the in-memory weight back to a previous value and
// makes a best-effort attempt to restore the row. Used when a later step of
// a feedback mutation fails and the earlier weight write must be undone.
func (s *Store) RestoreWeight(id int64, w float64) error {
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	r.Weight = ClampWeight(w)
	s.rules[id] = r

	_, err := s.db.Exec(`UPDATE rules SET weight = ? WHERE id = ?`, r.Weight, id)
	if err != nil {
		return fmt.Errorf("restore weight for rule %d: %w", id, err)
	}
	return nil
}

// #endregion

// #region update-definition

// UpdateDefinition replaces a rule's display fields and trigger condition,
// leaving its learned weight and active flag alone.
func (s *Store) UpdateDefinition(id int64, name, description string, trigger map[string]interface{}) error {
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}

	triggerJSON, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(`UPDATE rules SET name = ?, description = ?, trigger_condition = ?, updated_at = ? WHERE id = ?`,
		name, nullIfEmpty(description), string(triggerJSON), now.Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", id, err)
	}

	r.Name = name
	r.Description = description
	r.TriggerCondition = trigger
	r.UpdatedAt = now
	s.rules[id] = r
	return nil
}

// #endregion

// #region deactivate

// Deactivate retires a rule. Inactive rules are never evaluated.
func (s *Store) Deactivate(id int64) error {
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE rules SET is_active = 0, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("deactivate rule %d: %w", id, err)
	}

	r.IsActive = false
	r.UpdatedAt = now
	s.rules[id] = r
	return nil
}

// #endregion

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion
