package calendar

// #region imports
import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/danielpatrickdp/context-scheduler/internal/rules"
)

// #endregion

// #region service

// Service converts enriched calendar events into catalog rules. Rules it
// generates live in the same catalog as user rules and are matched, scored,
// and learned identically.
type Service struct {
	mu      *sync.RWMutex
	catalog *rules.Store
}

// NewService wires the calendar ingest path. mu must be the shared
// engine lock (taken for writing during ingest).
func NewService(mu *sync.RWMutex, catalog *rules.Store) *Service {
	return &Service{mu: mu, catalog: catalog}
}

// #endregion

// #region ingest

// Ingest upserts one rule per event: the trigger encodes a start-time match
// and the initial weight comes from the event priority. Re-ingesting an
// event refreshes its title and trigger but keeps the learned weight.
func (s *Service) Ingest(events []ParsedEvent) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res IngestResult
	for _, e := range events {
		if e.EventID == "" || e.Title == "" {
			log.Printf("[CAL] skipping event with missing id or title: %+v", e)
			continue
		}
		if e.StartTime.IsZero() && !e.IsAllDay {
			log.Printf("[CAL] skipping timed event %s without start time", e.EventID)
			continue
		}

		trigger := triggerFor(e)
		description := descriptionFor(e)

		if existing, ok := s.catalog.FindByCalendarEvent(e.EventID); ok {
			if err := s.catalog.UpdateDefinition(existing.ID, e.Title, description, trigger); err != nil {
				return res, fmt.Errorf("refresh rule for event %s: %w", e.EventID, err)
			}
			res.Updated++
			res.Details = append(res.Details, EventDetail{
				EventID:             e.EventID,
				RuleID:              existing.ID,
				ReminderLeadMinutes: e.ReminderLeadMinutes(),
			})
			continue
		}

		created, err := s.catalog.Create(rules.Rule{
			Name:             e.Title,
			Description:      description,
			TriggerCondition: trigger,
			Weight:           e.Priority.InitialWeight(),
			IsActive:         true,
			Source:           rules.SourceCalendar,
			CalendarEventID:  e.EventID,
		})
		if err != nil {
			return res, fmt.Errorf("create rule for event %s: %w", e.EventID, err)
		}
		res.Created++
		res.RulesGenerated++
		res.Details = append(res.Details, EventDetail{
			EventID:             e.EventID,
			RuleID:              created.ID,
			ReminderLeadMinutes: e.ReminderLeadMinutes(),
		})
	}
	return res, nil
}

// #endregion

// #region trigger

// triggerFor encodes the event's start-time match: the "time" condition is
// the start minus the computed reminder lead, so the rule fires early enough
// to leave room for preparation and travel. All-day events match a broad
// waking-hours window instead of an exact clock time.
func triggerFor(e ParsedEvent) map[string]interface{} {
	if e.IsAllDay {
		return map[string]interface{}{"time_range": "08:00-20:00"}
	}
	remindAt := e.StartTime.Add(-time.Duration(e.ReminderLeadMinutes()) * time.Minute)
	return map[string]interface{}{"time": remindAt.Format("15:04")}
}

func descriptionFor(e ParsedEvent) string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s", e.Title, e.Location)
	}
	return e.Title
}

// #endregion
