package memory

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/execution-hub/execution-tracker/internal/domain/agent"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/domain/heartbeat"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/clock"
)

// Observer is called with the events produced by one mutation, in append
// order, after the store lock is released. It must not block or call back
// into the store.
type Observer func(events []execution.Event)

type Option func(*Store)

// WithObserver registers fn to receive appended events.
func WithObserver(fn Observer) Option {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

type snapshot struct {
	Agents               map[string]agent.Agent
	Executions           map[string]execution.Execution
	StepOrderByExecution map[string][]string
	Steps                map[string]execution.Step
	EventsByExecution    map[string][]execution.Event
	Heartbeats           map[string]heartbeat.Heartbeat
	HeartbeatSeq         map[string]int64
	EventSeq             int64
	BeatSeq              int64
}

func emptySnapshot() snapshot {
	return snapshot{
		Agents:               map[string]agent.Agent{},
		Executions:           map[string]execution.Execution{},
		StepOrderByExecution: map[string][]string{},
		Steps:                map[string]execution.Step{},
		EventsByExecution:    map[string][]execution.Event{},
		Heartbeats:           map[string]heartbeat.Heartbeat{},
		HeartbeatSeq:         map[string]int64{},
	}
}

// Store is the in-memory owner of agents, executions, steps, events and
// heartbeats. A single lock makes every operation atomic across collections.
type Store struct {
	mu    sync.RWMutex
	s     snapshot
	clock clock.Provider

	// notifyMu keeps observer delivery in commit order without holding mu.
	notifyMu  sync.Mutex
	pending   []execution.Event
	observers []Observer
}

func NewStore(provider clock.Provider, opts ...Option) *Store {
	if provider == nil {
		provider = clock.NewSystem()
	}
	st := &Store{
		s:     emptySnapshot(),
		clock: provider,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// commit runs fn under the write lock, then hands the events fn appended to
// the observers. If fn panics the lock is released and its pending events are
// discarded before the panic propagates.
func (st *Store) commit(fn func()) {
	st.mu.Lock()
	locked := true
	defer func() {
		if locked {
			st.pending = nil
			st.mu.Unlock()
		}
	}()
	fn()
	emitted := st.pending
	st.pending = nil
	st.notifyMu.Lock()
	locked = false
	st.mu.Unlock()
	defer st.notifyMu.Unlock()
	if len(emitted) == 0 {
		return
	}
	for _, observe := range st.observers {
		observe(cloneEvents(emitted))
	}
}

// RegisterAgent inserts or updates the agent keyed by reg.ID.
func (st *Store) RegisterAgent(reg agent.Registration) agent.Agent {
	var out agent.Agent
	reg.ID = agent.NormalizeID(reg.ID)
	st.commit(func() {
		now := st.clock.Now()
		var prior *agent.Agent
		if existing, ok := st.s.Agents[reg.ID]; ok {
			prior = &existing
		}
		a := agent.Apply(prior, reg, now)
		st.s.Agents[a.ID] = a
		out = cloneAgent(a)
	})
	return out
}

func (st *Store) GetAgent(agentID string) (agent.Agent, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	a, ok := st.s.Agents[agent.NormalizeID(agentID)]
	if !ok {
		return agent.Agent{}, false
	}
	return cloneAgent(a), true
}

// ListAgents returns all agents, oldest registration first.
func (st *Store) ListAgents() []agent.Agent {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]agent.Agent, 0, len(st.s.Agents))
	for _, a := range st.s.Agents {
		out = append(out, cloneAgent(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CreateExecution opens a new execution. The agent id is not checked against
// registered agents.
func (st *Store) CreateExecution(in execution.StartExecution) execution.Execution {
	var out execution.Execution
	st.commit(func() {
		now := st.clock.Now()
		status := in.Status
		if status == "" {
			status = execution.StatusRunning
		}
		exec := execution.Execution{
			ID:             st.clock.NewID(),
			AgentID:        in.AgentID,
			RequestID:      clonePtr(in.RequestID),
			ConversationID: clonePtr(in.ConversationID),
			UserID:         clonePtr(in.UserID),
			Channel:        clonePtr(in.Channel),
			Status:         status,
			StartedAt:      now,
			InputPayload:   cloneRaw(in.InputPayload),
			Meta:           cloneRaw(in.Meta),
		}
		st.s.Executions[exec.ID] = exec
		st.s.StepOrderByExecution[exec.ID] = []string{}
		st.appendEventLocked(exec.ID, nil, execution.EventExecutionStarted, execution.ExecutionStartedPayload{
			AgentID: exec.AgentID,
			Channel: exec.Channel,
		}, now)
		out = cloneExecution(exec)
	})
	return out
}

// EndExecution closes an execution. Calling it again overwrites the previous
// end data; duration is always measured from the original start.
func (st *Store) EndExecution(executionID string, in execution.EndExecution) (execution.Execution, bool) {
	var (
		out execution.Execution
		ok  bool
	)
	st.commit(func() {
		exec, found := st.s.Executions[executionID]
		if !found {
			return
		}
		now := st.clock.Now()
		duration := execution.DurationMillis(exec.StartedAt, now)
		exec.EndedAt = &now
		exec.DurationMs = &duration
		exec.Status = in.Status
		exec.OutputPayload = cloneRaw(in.OutputPayload)
		exec.ErrorCode, exec.ErrorMessage = in.Error.Split()
		st.s.Executions[exec.ID] = exec
		st.appendEventLocked(exec.ID, nil, execution.EventExecutionEnded, execution.ExecutionEndedPayload{
			Status:     exec.Status,
			DurationMs: duration,
			ErrorCode:  exec.ErrorCode,
		}, now)
		out, ok = cloneExecution(exec), true
	})
	return out, ok
}

func (st *Store) GetExecution(executionID string) (execution.Execution, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	exec, ok := st.s.Executions[executionID]
	if !ok {
		return execution.Execution{}, false
	}
	return cloneExecution(exec), true
}

// ListExecutions returns executions matching agentID and status (empty means
// any), newest first.
func (st *Store) ListExecutions(agentID string, status execution.Status) []execution.Execution {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]execution.Execution, 0)
	for _, exec := range st.s.Executions {
		if agentID != "" && exec.AgentID != agentID {
			continue
		}
		if status != "" && exec.Status != status {
			continue
		}
		out = append(out, cloneExecution(exec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// CreateStep opens a step inside a live execution. It reports false and
// changes nothing when the execution is unknown.
func (st *Store) CreateStep(executionID string, in execution.StartStep) (execution.Step, bool) {
	var (
		out execution.Step
		ok  bool
	)
	st.commit(func() {
		if _, found := st.s.Executions[executionID]; !found {
			return
		}
		now := st.clock.Now()
		retries := in.RetryCount
		if retries < 0 {
			retries = 0
		}
		step := execution.Step{
			ID:             st.clock.NewID(),
			ExecutionID:    executionID,
			StepSeq:        in.StepSeq,
			Name:           in.Name,
			StepType:       in.StepType,
			TargetSystem:   clonePtr(in.TargetSystem),
			TargetName:     clonePtr(in.TargetName),
			Status:         execution.StatusRunning,
			StartedAt:      now,
			RetryCount:     retries,
			IdempotencyKey: clonePtr(in.IdempotencyKey),
			RequestPayload: cloneRaw(in.RequestPayload),
			Metrics:        map[string]any{},
		}
		st.s.Steps[step.ID] = step
		st.s.StepOrderByExecution[executionID] = append(st.s.StepOrderByExecution[executionID], step.ID)
		st.appendEventLocked(executionID, &step.ID, execution.EventStepStarted, execution.StepStartedPayload{
			StepName: step.Name,
			StepType: step.StepType,
			StepSeq:  step.StepSeq,
		}, now)
		out, ok = cloneStep(step), true
	})
	return out, ok
}

// EndStep closes a step. The stored metrics are the caller's metrics with
// duration_ms replaced by the measured value.
func (st *Store) EndStep(stepID string, in execution.EndStep) (execution.Step, bool) {
	var (
		out execution.Step
		ok  bool
	)
	st.commit(func() {
		step, found := st.s.Steps[stepID]
		if !found {
			return
		}
		now := st.clock.Now()
		duration := execution.DurationMillis(step.StartedAt, now)
		step.EndedAt = &now
		step.DurationMs = &duration
		step.Status = in.Status
		step.ResponsePayload = cloneRaw(in.ResponsePayload)
		step.Metrics = execution.MergeMetrics(in.Metrics, duration)
		step.ErrorCode, step.ErrorMessage = in.Error.Split()
		st.s.Steps[step.ID] = step
		st.appendEventLocked(step.ExecutionID, &step.ID, execution.EventStepEnded, execution.StepEndedPayload{
			StepName:   step.Name,
			Status:     step.Status,
			DurationMs: duration,
			ErrorCode:  step.ErrorCode,
		}, now)
		out, ok = cloneStep(step), true
	})
	return out, ok
}

func (st *Store) GetStep(stepID string) (execution.Step, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	step, ok := st.s.Steps[stepID]
	if !ok {
		return execution.Step{}, false
	}
	return cloneStep(step), true
}

// GetExecutionDetail assembles the execution with its steps ordered by
// step_seq and its events ordered by time, under one read lock.
func (st *Store) GetExecutionDetail(executionID string) (execution.Detail, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	exec, ok := st.s.Executions[executionID]
	if !ok {
		return execution.Detail{}, false
	}
	stepIDs := st.s.StepOrderByExecution[executionID]
	steps := make([]execution.Step, 0, len(stepIDs))
	for _, id := range stepIDs {
		step, found := st.s.Steps[id]
		if !found {
			continue
		}
		steps = append(steps, cloneStep(step))
	}
	execution.SortSteps(steps)
	return execution.Detail{
		Execution: cloneExecution(exec),
		Steps:     steps,
		Events:    st.eventsLocked(executionID),
	}, true
}

// ListEvents returns the time-ordered events of one execution.
func (st *Store) ListEvents(executionID string) ([]execution.Event, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if _, ok := st.s.Executions[executionID]; !ok {
		return nil, false
	}
	return st.eventsLocked(executionID), true
}

func (st *Store) eventsLocked(executionID string) []execution.Event {
	events := cloneEvents(st.s.EventsByExecution[executionID])
	execution.SortEvents(events)
	return events
}

// UpsertHeartbeat replaces the worker's record; last_seen_at is always now.
func (st *Store) UpsertHeartbeat(beat heartbeat.Beat) heartbeat.Heartbeat {
	var out heartbeat.Heartbeat
	st.commit(func() {
		hb := heartbeat.Heartbeat{
			WorkerID:   beat.WorkerID,
			Host:       beat.Host,
			Env:        beat.Env,
			LastSeenAt: st.clock.Now(),
			Meta:       cloneRaw(beat.Meta),
		}
		st.s.BeatSeq++
		st.s.Heartbeats[hb.WorkerID] = hb
		st.s.HeartbeatSeq[hb.WorkerID] = st.s.BeatSeq
		out = cloneHeartbeat(hb)
	})
	return out
}

// ListHeartbeats returns all workers, most recently seen first.
func (st *Store) ListHeartbeats() []heartbeat.Heartbeat {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]heartbeat.Heartbeat, 0, len(st.s.Heartbeats))
	for _, hb := range st.s.Heartbeats {
		out = append(out, cloneHeartbeat(hb))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return st.s.HeartbeatSeq[out[i].WorkerID] > st.s.HeartbeatSeq[out[j].WorkerID]
		}
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	return out
}

type Stats struct {
	Agents            int `json:"agents"`
	Executions        int `json:"executions"`
	RunningExecutions int `json:"running_executions"`
	FailedExecutions  int `json:"failed_executions"`
	Steps             int `json:"steps"`
	RunningSteps      int `json:"running_steps"`
	FailedSteps       int `json:"failed_steps"`
	Events            int `json:"events"`
	Heartbeats        int `json:"heartbeats"`
}

func (st *Store) Stats() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	stats := Stats{
		Agents:     len(st.s.Agents),
		Executions: len(st.s.Executions),
		Steps:      len(st.s.Steps),
		Heartbeats: len(st.s.Heartbeats),
	}
	for _, exec := range st.s.Executions {
		switch exec.Status {
		case execution.StatusRunning:
			stats.RunningExecutions++
		case execution.StatusFailed:
			stats.FailedExecutions++
		}
	}
	for _, step := range st.s.Steps {
		switch step.Status {
		case execution.StatusRunning:
			stats.RunningSteps++
		case execution.StatusFailed:
			stats.FailedSteps++
		}
	}
	for _, events := range st.s.EventsByExecution {
		stats.Events += len(events)
	}
	return stats
}

// appendEventLocked is the only place events are created.
func (st *Store) appendEventLocked(executionID string, stepID *string, eventType execution.EventType, payload any, at time.Time) {
	rawPayload := json.RawMessage(nil)
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			rawPayload = b
		}
	}
	st.s.EventSeq++
	event := execution.Event{
		ID:          st.clock.NewID(),
		Seq:         st.s.EventSeq,
		ExecutionID: executionID,
		StepID:      clonePtr(stepID),
		Type:        eventType,
		EventTime:   at,
		Payload:     rawPayload,
	}
	st.s.EventsByExecution[executionID] = append(st.s.EventsByExecution[executionID], event)
	st.pending = append(st.pending, event)
}
