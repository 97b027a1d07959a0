package rules

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(Rule{
		Name:             "Get Fuel",
		Description:      "Stop at gas station on the way",
		TriggerCondition: map[string]interface{}{"activity": "TRAVELING"},
		IsActive:         true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Error("expected assigned id")
	}
	if created.Weight != WeightDefault {
		t.Errorf("weight = %.2f, want default %.2f", created.Weight, WeightDefault)
	}
	if created.Source != SourceUser {
		t.Errorf("source = %q, want user", created.Source)
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Get Fuel" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(99)
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("err = %v, want ErrRuleNotFound", err)
	}
}

func TestStore_ListActiveSkipsDeactivated(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.Create(Rule{Name: "A", TriggerCondition: map[string]interface{}{}, IsActive: true})
	b, _ := s.Create(Rule{Name: "B", TriggerCondition: map[string]interface{}{}, IsActive: true})

	if err := s.Deactivate(a.ID); err != nil {
		t.Fatal(err)
	}

	active := s.ListActive()
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("active = %v", active)
	}
	if len(s.ListAll()) != 2 {
		t.Error("ListAll should include deactivated rules")
	}
}

func TestStore_UpdateWeightClamps(t *testing.T) {
	s := newTestStore(t)
	r, _ := s.Create(Rule{Name: "R", TriggerCondition: map[string]interface{}{}, Weight: 0.90, IsActive: true})

	// Two accepts saturate at the upper clamp.
	if _, _, err := s.UpdateWeight(r.ID, 0.05); err != nil {
		t.Fatal(err)
	}
	old, updated, err := s.UpdateWeight(r.ID, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if old != 0.95 || updated != 0.95 {
		t.Errorf("old=%.2f updated=%.2f, want both 0.95", old, updated)
	}

	// Rejects saturate at the lower clamp.
	for i := 0; i < 9; i++ {
		if _, _, err := s.UpdateWeight(r.ID, -0.10); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.Get(r.ID)
	if got.Weight != 0.10 {
		t.Errorf("weight = %.2f, want 0.10", got.Weight)
	}
}

func TestStore_ReloadFromDisk(t *testing.T) {
	db := newTestDB(t)
	s1, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	created, err := s1.Create(Rule{
		Name:             "Persisted",
		TriggerCondition: map[string]interface{}{"time_range": "07:00-10:00"},
		IsActive:         true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same handle sees the persisted catalog.
	s2, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TriggerCondition["time_range"] != "07:00-10:00" {
		t.Errorf("trigger = %v", got.TriggerCondition)
	}
}

func TestStore_FindByCalendarEvent(t *testing.T) {
	s := newTestStore(t)
	created, _ := s.Create(Rule{
		Name:             "Dentist",
		TriggerCondition: map[string]interface{}{"time": "16:30"},
		Source:           SourceCalendar,
		CalendarEventID:  "evt-123",
		IsActive:         true,
	})

	got, ok := s.FindByCalendarEvent("evt-123")
	if !ok || got.ID != created.ID {
		t.Errorf("got %v ok=%v", got, ok)
	}
	if _, ok := s.FindByCalendarEvent("evt-missing"); ok {
		t.Error("expected no match")
	}
}
