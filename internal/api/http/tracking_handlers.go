package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/execution-hub/execution-tracker/internal/application/tracking"
	"github.com/execution-hub/execution-tracker/internal/domain/agent"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/domain/heartbeat"
)

// Data types for requests

type agentRegisterRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AgentType *string  `json:"agent_type,omitempty"`
	Team      *string  `json:"team,omitempty"`
	Active    *bool    `json:"active,omitempty"`
	Version   *string  `json:"version,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type executionCreateRequest struct {
	AgentID        string          `json:"agent_id"`
	RequestID      *string         `json:"request_id,omitempty"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	UserID         *string         `json:"user_id,omitempty"`
	Channel        *string         `json:"channel,omitempty"`
	Status         *string         `json:"status,omitempty"`
	InputPayload   json.RawMessage `json:"input_payload,omitempty"`
	Meta           json.RawMessage `json:"meta,omitempty"`
	serverAssigned
}

type failureRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type executionEndRequest struct {
	Status        string          `json:"status"`
	OutputPayload json.RawMessage `json:"output_payload,omitempty"`
	Error         *failureRequest `json:"error,omitempty"`
	ErrorCode     *string         `json:"error_code,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	serverAssigned
}

type stepCreateRequest struct {
	StepSeq        *int            `json:"step_seq"`
	Name           string          `json:"name"`
	StepType       string          `json:"step_type"`
	TargetSystem   *string         `json:"target_system,omitempty"`
	TargetName     *string         `json:"target_name,omitempty"`
	RetryCount     int             `json:"retry_count,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	RequestPayload json.RawMessage `json:"request_payload,omitempty"`
	serverAssigned
}

type stepEndRequest struct {
	Status          string          `json:"status"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	Metrics         map[string]any  `json:"metrics,omitempty"`
	Error           *failureRequest `json:"error,omitempty"`
	ErrorCode       *string         `json:"error_code,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	serverAssigned
}

type heartbeatRequest struct {
	WorkerID string          `json:"worker_id"`
	Host     string          `json:"host"`
	Env      string          `json:"env"`
	Meta     json.RawMessage `json:"meta,omitempty"`

	// Accepted and discarded; last_seen_at is always the server's clock.
	LastSeenAt json.RawMessage `json:"last_seen_at,omitempty"`
}

// serverAssigned lists fields the tracker derives itself. Clients echoing a
// previous response may send them; they are decoded and never forwarded.
type serverAssigned struct {
	ID         json.RawMessage `json:"id,omitempty"`
	StartedAt  json.RawMessage `json:"started_at,omitempty"`
	EndedAt    json.RawMessage `json:"ended_at,omitempty"`
	DurationMs json.RawMessage `json:"duration_ms,omitempty"`
}

// failure accepts either the nested error object or the flat fields.
func failure(nested *failureRequest, code, message *string) *execution.Failure {
	if nested != nil {
		return &execution.Failure{Code: nested.Code, Message: nested.Message}
	}
	if code == nil && message == nil {
		return nil
	}
	f := &execution.Failure{}
	if code != nil {
		f.Code = *code
	}
	if message != nil {
		f.Message = *message
	}
	return f
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Agent handlers
func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if blank(req.ID) || blank(req.Name) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "id and name are required")
		return
	}
	a := s.svc.RegisterAgent(agent.Registration{
		ID:        strings.TrimSpace(req.ID),
		Name:      req.Name,
		AgentType: req.AgentType,
		Team:      req.Team,
		Active:    req.Active,
		Version:   req.Version,
		Tags:      req.Tags,
	})
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"agents": s.svc.ListAgents()})
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.GetAgent(chi.URLParam(r, "agentId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Execution handlers
func (s *Server) createExecution(w http.ResponseWriter, r *http.Request) {
	var req executionCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if blank(req.AgentID) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "agent_id is required")
		return
	}
	in := execution.StartExecution{
		AgentID:        req.AgentID,
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Channel:        req.Channel,
		InputPayload:   req.InputPayload,
		Meta:           req.Meta,
	}
	if req.Status != nil {
		status, err := execution.ParseStatus(*req.Status)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
			return
		}
		in.Status = status
	}
	respondJSON(w, http.StatusCreated, s.svc.StartExecution(in))
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	q := execution.Query{
		AgentID: r.URL.Query().Get("agent_id"),
		Where:   r.URL.Query().Get("where"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := execution.ParseStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
			return
		}
		q.Status = status
	}
	q.Limit, q.Offset = parseLimitOffset(r, tracking.DefaultPageLimit, tracking.MaxPageLimit)
	page, err := s.svc.ListExecutions(q)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) getExecutionDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetExecutionDetail(chi.URLParam(r, "executionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) endExecution(w http.ResponseWriter, r *http.Request) {
	var req executionEndRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if blank(req.Status) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "status is required")
		return
	}
	status, err := execution.ParseTerminalStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	exec, err := s.svc.EndExecution(chi.URLParam(r, "executionId"), execution.EndExecution{
		Status:        status,
		OutputPayload: req.OutputPayload,
		Error:         failure(req.Error, req.ErrorCode, req.ErrorMessage),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.ListEvents(chi.URLParam(r, "executionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// Step handlers
func (s *Server) createStep(w http.ResponseWriter, r *http.Request) {
	var req stepCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.StepSeq == nil || blank(req.Name) || blank(req.StepType) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "step_seq, name and step_type are required")
		return
	}
	step, err := s.svc.CreateStep(chi.URLParam(r, "executionId"), execution.StartStep{
		StepSeq:        *req.StepSeq,
		Name:           req.Name,
		StepType:       req.StepType,
		TargetSystem:   req.TargetSystem,
		TargetName:     req.TargetName,
		RetryCount:     req.RetryCount,
		IdempotencyKey: req.IdempotencyKey,
		RequestPayload: req.RequestPayload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, step)
}

func (s *Server) getStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.svc.GetStep(chi.URLParam(r, "stepId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, step)
}

func (s *Server) endStep(w http.ResponseWriter, r *http.Request) {
	var req stepEndRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if blank(req.Status) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "status is required")
		return
	}
	status, err := execution.ParseTerminalStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	step, err := s.svc.EndStep(chi.URLParam(r, "stepId"), execution.EndStep{
		Status:          status,
		ResponsePayload: req.ResponsePayload,
		Metrics:         req.Metrics,
		Error:           failure(req.Error, req.ErrorCode, req.ErrorMessage),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, step)
}

// Heartbeat handlers
func (s *Server) upsertHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if blank(req.WorkerID) || blank(req.Host) || blank(req.Env) {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "worker_id, host and env are required")
		return
	}
	hb := s.svc.UpsertHeartbeat(heartbeat.Beat{
		WorkerID: req.WorkerID,
		Host:     req.Host,
		Env:      req.Env,
		Meta:     req.Meta,
	})
	respondJSON(w, http.StatusOK, hb)
}

func (s *Server) listHeartbeats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"workers": s.svc.ListHeartbeats()})
}
