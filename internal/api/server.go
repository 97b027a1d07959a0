package api

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/context-scheduler/internal/auditlog"
	"github.com/danielpatrickdp/context-scheduler/internal/calendar"
	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
	"github.com/danielpatrickdp/context-scheduler/internal/inference"
	"github.com/danielpatrickdp/context-scheduler/internal/learning"
	"github.com/danielpatrickdp/context-scheduler/internal/rules"
)

// #endregion

// #region server-struct

// Server exposes the suggestion engine over HTTP/JSON.
type Server struct {
	engine        *inference.Engine
	learner       *learning.Service
	calendar      *calendar.Service
	db            *sql.DB
	defaultSearch bool
}

// NewServer wires the HTTP surface over the core services.
func NewServer(engine *inference.Engine, learner *learning.Service, cal *calendar.Service, db *sql.DB, defaultSearch bool) *Server {
	return &Server{
		engine:        engine,
		learner:       learner,
		calendar:      cal,
		db:            db,
		defaultSearch: defaultSearch,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/infer", s.handleInfer)
	mux.HandleFunc("/context", s.handleContext)
	mux.HandleFunc("/feedback", s.handleFeedback)
	mux.HandleFunc("/feedback/history", s.handleFeedbackHistory)
	mux.HandleFunc("/rules", s.handleRules)
	mux.HandleFunc("/rules/", s.handleRuleByID)
	mux.HandleFunc("/calendar/events", s.handleCalendarEvents)
	mux.HandleFunc("/learning/summary", s.handleLearningSummary)
	mux.HandleFunc("/learning/explanation", s.handleLearningExplanation)
	mux.HandleFunc("/analytics/rules", s.handleRuleAnalytics)
	return withLogging(mux)
}

// #endregion

// #region dto

// contextDTO is the wire form of a raw snapshot. Timestamps are ISO-8601,
// with or without a zone. Unknown extras fields pass through untouched.
type contextDTO struct {
	Timestamp             string                 `json:"timestamp"`
	Activity              string                 `json:"activity"`
	SpeedKmh              float64                `json:"speed_kmh"`
	CarBluetoothConnected bool                   `json:"car_bluetooth_connected"`
	WifiSSID              string                 `json:"wifi_ssid"`
	LocationVector        string                 `json:"location_vector"`
	Extras                map[string]interface{} `json:"extras"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (d contextDTO) toContext() (extraction.Context, error) {
	var stamp time.Time
	if d.Timestamp != "" {
		var err error
		for _, layout := range timestampLayouts {
			stamp, err = time.Parse(layout, d.Timestamp)
			if err == nil {
				break
			}
		}
		if stamp.IsZero() {
			return extraction.Context{}, errors.New("unparseable timestamp")
		}
	}
	return extraction.Context{
		Timestamp:             stamp,
		Activity:              extraction.Activity(d.Activity),
		SpeedKmh:              d.SpeedKmh,
		CarBluetoothConnected: d.CarBluetoothConnected,
		WifiSSID:              d.WifiSSID,
		LocationVector:        d.LocationVector,
		Extras:                d.Extras,
	}, nil
}

// #endregion

// #region health

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "online",
		"service":   "context-scheduler",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// #endregion

// #region infer

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var dto contextDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snapshot, err := dto.toContext()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	enableSearch := s.defaultSearch
	if raw := r.URL.Query().Get("search"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			enableSearch = v
		}
	}

	resp, err := s.engine.Infer(r.Context(), snapshot, enableSearch)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditContext(snapshot, "infer")
	writeJSON(w, http.StatusOK, resp)
}

// #endregion

// #region context-ingest

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var dto contextDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snapshot, err := dto.toContext()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := extraction.Validate(snapshot); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditContext(snapshot, "ingest")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"timestamp": snapshot.Timestamp,
	})
}

func (s *Server) auditContext(snapshot extraction.Context, source string) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := auditlog.LogContext(s.db, auditlog.ContextEntry{
		SnapshotJSON: string(raw),
		Source:       source,
	}); err != nil {
		log.Printf("[API] context audit write failed: %v", err)
	}
}

// #endregion

// #region feedback

type feedbackRequest struct {
	RuleID          int64      `json:"rule_id"`
	Outcome         string     `json:"outcome"`
	ContextSnapshot contextDTO `json:"context_snapshot"`
	ChosenLeadTime  int        `json:"chosen_lead_time"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snapshot, err := req.ContextSnapshot.toContext()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.learner.ApplyFeedback(req.RuleID, normalizeOutcome(req.Outcome), snapshot, req.ChosenLeadTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// normalizeOutcome tolerates the past-tense forms some clients send.
func normalizeOutcome(raw string) auditlog.Outcome {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accept", "accepted":
		return auditlog.OutcomeAccept
	case "reject", "rejected":
		return auditlog.OutcomeReject
	default:
		return auditlog.Outcome(raw)
	}
}

func (s *Server) handleFeedbackHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ruleID, _ := strconv.ParseInt(r.URL.Query().Get("rule_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := auditlog.RecentFeedback(s.db, ruleID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":        len(history),
		"feedback_log": history,
	})
}

// #endregion

// #region rules

type ruleRequest struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	TriggerCondition map[string]interface{} `json:"trigger_condition"`
	Weight           float64                `json:"weight"`
	IsActive         *bool                  `json:"is_active"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.ListRules())
	case http.MethodPost:
		var req ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" || len(req.TriggerCondition) == 0 {
			writeError(w, http.StatusBadRequest, "name and trigger_condition are required")
			return
		}
		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}
		created, err := s.engine.CreateRule(rules.Rule{
			Name:             req.Name,
			Description:      req.Description,
			TriggerCondition: req.TriggerCondition,
			Weight:           req.Weight,
			IsActive:         active,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/rules/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.engine.GetRule(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	case http.MethodDelete:
		// Rules are retired, never hard-deleted; their feedback history stays.
		if err := s.engine.DeactivateRule(id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "rule_id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// #endregion

// #region calendar

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var events []calendar.ParsedEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.calendar.Ingest(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// #endregion

// #region learning

func (s *Server) handleLearningSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	minFeedback, _ := strconv.Atoi(q.Get("min_feedback"))
	summary := s.learner.Summarize(q.Get("task_type"), q.Get("context_key"), minFeedback)
	writeJSON(w, http.StatusOK, summary)
}

type explanationRequest struct {
	TaskType string     `json:"task_type"`
	Context  contextDTO `json:"context"`
}

func (s *Server) handleLearningExplanation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req explanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskType == "" {
		writeError(w, http.StatusBadRequest, "task_type is required")
		return
	}
	snapshot, err := req.Context.toContext()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exp, err := s.learner.Explain(req.TaskType, snapshot)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// #endregion

// #region analytics

type ruleAnalytics struct {
	RuleID         int64   `json:"rule_id"`
	TaskName       string  `json:"task_name"`
	Weight         float64 `json:"weight"`
	Accepts        int     `json:"accepts"`
	Rejects        int     `json:"rejects"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	IsActive       bool    `json:"is_active"`
}

func (s *Server) handleRuleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all := s.engine.ListRules()
	out := make([]ruleAnalytics, 0, len(all))
	for _, rule := range all {
		accepts, rejects, err := auditlog.CountFeedback(s.db, rule.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rate := 0.0
		if total := accepts + rejects; total > 0 {
			rate = float64(accepts) / float64(total) * 100
		}
		out = append(out, ruleAnalytics{
			RuleID:         rule.ID,
			TaskName:       rule.Name,
			Weight:         rule.Weight,
			Accepts:        accepts,
			Rejects:        rejects,
			AcceptanceRate: rate,
			IsActive:       rule.IsActive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptanceRate > out[j].AcceptanceRate })
	writeJSON(w, http.StatusOK, map[string]interface{}{"analytics": out})
}

// #endregion

// #region error-mapping

// writeDomainError maps core error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extraction.ErrInvalidContext), errors.Is(err, learning.ErrInvalidOutcome):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rules.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, learning.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// #endregion

// #region helpers

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()[:8]
		log.Printf("[API] %s %s %s", reqID, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// #endregion
