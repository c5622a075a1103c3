package tracking

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/execution-hub/execution-tracker/internal/domain/agent"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/domain/heartbeat"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/memory"
)

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrStepNotFound      = errors.New("step not found")
	ErrInvalidFilter     = errors.New("invalid filter")
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

// ExecutionPage is one window of a filtered execution listing.
type ExecutionPage struct {
	Items  []execution.Execution `json:"executions"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// Service is the entry point for tracking operations. It forwards to the
// store and turns missing entities into errors.
type Service struct {
	store  *memory.Store
	logger zerolog.Logger
}

// NewService creates a tracking service.
func NewService(store *memory.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("service", "tracking").Logger(),
	}
}

func (s *Service) RegisterAgent(reg agent.Registration) agent.Agent {
	a := s.store.RegisterAgent(reg)
	s.logger.Info().Str("agent_id", a.ID).Str("agent_type", a.AgentType).Msg("agent registered")
	return a
}

func (s *Service) GetAgent(agentID string) (agent.Agent, error) {
	a, ok := s.store.GetAgent(agentID)
	if !ok {
		return agent.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return a, nil
}

func (s *Service) ListAgents() []agent.Agent {
	return s.store.ListAgents()
}

// StartExecution opens an execution for in.AgentID.
func (s *Service) StartExecution(in execution.StartExecution) execution.Execution {
	exec := s.store.CreateExecution(in)
	s.logger.Info().
		Str("execution_id", exec.ID).
		Str("agent_id", exec.AgentID).
		Str("status", string(exec.Status)).
		Msg("execution started")
	return exec
}

func (s *Service) EndExecution(executionID string, in execution.EndExecution) (execution.Execution, error) {
	exec, ok := s.store.EndExecution(executionID, in)
	if !ok {
		return execution.Execution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	evt := s.logger.Info()
	if exec.Status == execution.StatusFailed {
		evt = s.logger.Warn()
	}
	evt.Str("execution_id", exec.ID).
		Str("status", string(exec.Status)).
		Int64("duration_ms", derefInt64(exec.DurationMs)).
		Msg("execution ended")
	return exec, nil
}

func (s *Service) GetExecution(executionID string) (execution.Execution, error) {
	exec, ok := s.store.GetExecution(executionID)
	if !ok {
		return execution.Execution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	return exec, nil
}

// ListExecutions filters by agent, status and where, then applies the
// limit/offset window.
func (s *Service) ListExecutions(q execution.Query) (ExecutionPage, error) {
	filter, err := CompileFilter(q.Where)
	if err != nil {
		return ExecutionPage{}, err
	}
	all := s.store.ListExecutions(q.AgentID, q.Status)
	matched := make([]execution.Execution, 0, len(all))
	for _, exec := range all {
		ok, err := filter.Match(exec)
		if err != nil {
			return ExecutionPage{}, err
		}
		if ok {
			matched = append(matched, exec)
		}
	}
	limit, offset := normalizeWindow(q.Limit, q.Offset)
	start, end := pageWindow(len(matched), limit, offset)
	return ExecutionPage{
		Items:  matched[start:end],
		Total:  len(matched),
		Limit:  limit,
		Offset: offset,
	}, nil
}

func (s *Service) CreateStep(executionID string, in execution.StartStep) (execution.Step, error) {
	step, ok := s.store.CreateStep(executionID, in)
	if !ok {
		return execution.Step{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	s.logger.Debug().
		Str("execution_id", executionID).
		Str("step_id", step.ID).
		Int("step_seq", step.StepSeq).
		Str("step_name", step.Name).
		Msg("step started")
	return step, nil
}

func (s *Service) EndStep(stepID string, in execution.EndStep) (execution.Step, error) {
	step, ok := s.store.EndStep(stepID, in)
	if !ok {
		return execution.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	s.logger.Debug().
		Str("execution_id", step.ExecutionID).
		Str("step_id", step.ID).
		Str("status", string(step.Status)).
		Int64("duration_ms", derefInt64(step.DurationMs)).
		Msg("step ended")
	return step, nil
}

func (s *Service) GetStep(stepID string) (execution.Step, error) {
	step, ok := s.store.GetStep(stepID)
	if !ok {
		return execution.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	return step, nil
}

// GetExecutionDetail returns the execution with its ordered steps and events.
func (s *Service) GetExecutionDetail(executionID string) (execution.Detail, error) {
	detail, ok := s.store.GetExecutionDetail(executionID)
	if !ok {
		return execution.Detail{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	return detail, nil
}

func (s *Service) ListEvents(executionID string) ([]execution.Event, error) {
	events, ok := s.store.ListEvents(executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	return events, nil
}

func (s *Service) UpsertHeartbeat(beat heartbeat.Beat) heartbeat.Heartbeat {
	hb := s.store.UpsertHeartbeat(beat)
	s.logger.Debug().Str("worker_id", hb.WorkerID).Str("host", hb.Host).Str("env", hb.Env).Msg("heartbeat")
	return hb
}

func (s *Service) ListHeartbeats() []heartbeat.Heartbeat {
	return s.store.ListHeartbeats()
}

func (s *Service) Stats() memory.Stats {
	return s.store.Stats()
}

func normalizeWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pageWindow(total, limit, offset int) (int, int) {
	if offset >= total {
		return total, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
