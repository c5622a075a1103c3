package tracking

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/execution-tracker/internal/domain/agent"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/domain/heartbeat"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/clock"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/memory"
)

func newTestService(t *testing.T) (*Service, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Millisecond)
	return NewService(memory.NewStore(c), zerolog.Nop()), c
}

func TestServiceNotFoundErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.EndExecution("nope", execution.EndExecution{Status: execution.StatusSucceeded})
	assert.True(t, errors.Is(err, ErrExecutionNotFound))

	_, err = svc.CreateStep("nope", execution.StartStep{StepSeq: 1, Name: "s", StepType: "rpc"})
	assert.True(t, errors.Is(err, ErrExecutionNotFound))

	_, err = svc.EndStep("nope", execution.EndStep{Status: execution.StatusFailed})
	assert.True(t, errors.Is(err, ErrStepNotFound))

	_, err = svc.GetStep("nope")
	assert.True(t, errors.Is(err, ErrStepNotFound))

	_, err = svc.GetExecutionDetail("nope")
	assert.True(t, errors.Is(err, ErrExecutionNotFound))

	_, err = svc.ListEvents("nope")
	assert.True(t, errors.Is(err, ErrExecutionNotFound))

	_, err = svc.GetAgent("nope")
	assert.True(t, errors.Is(err, ErrAgentNotFound))
}

func TestServiceLifecycle(t *testing.T) {
	svc, c := newTestService(t)

	a := svc.RegisterAgent(agent.Registration{ID: "a1", Name: "Planner"})
	assert.Equal(t, agent.DefaultType, a.AgentType)

	exec := svc.StartExecution(execution.StartExecution{AgentID: a.ID})
	step, err := svc.CreateStep(exec.ID, execution.StartStep{StepSeq: 1, Name: "lookup", StepType: "db"})
	require.NoError(t, err)

	c.Advance(40 * time.Millisecond)
	step, err = svc.EndStep(step.ID, execution.EndStep{Status: execution.StatusSucceeded})
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSucceeded, step.Status)

	exec, err = svc.EndExecution(exec.ID, execution.EndExecution{Status: execution.StatusFailed, Error: &execution.Failure{Code: "TIMEOUT"}})
	require.NoError(t, err)
	assert.Equal(t, "TIMEOUT", *exec.ErrorCode)

	detail, err := svc.GetExecutionDetail(exec.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Steps, 1)
	assert.Len(t, detail.Events, 4)

	hb := svc.UpsertHeartbeat(heartbeat.Beat{WorkerID: "w1", Host: "h1", Env: "prod"})
	assert.Equal(t, []heartbeat.Heartbeat{hb}, svc.ListHeartbeats())

	stats := svc.Stats()
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.Equal(t, 1, stats.Agents)
}

func TestServiceListExecutions(t *testing.T) {
	svc, c := newTestService(t)

	fast := svc.StartExecution(execution.StartExecution{AgentID: "a1", Meta: json.RawMessage(`{"tenant":"acme"}`)})
	slow := svc.StartExecution(execution.StartExecution{AgentID: "a1", Meta: json.RawMessage(`{"tenant":"globex"}`)})
	other := svc.StartExecution(execution.StartExecution{AgentID: "a2"})
	_, err := svc.EndExecution(fast.ID, execution.EndExecution{Status: execution.StatusFailed})
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = svc.EndExecution(slow.ID, execution.EndExecution{Status: execution.StatusFailed})
	require.NoError(t, err)

	t.Run("agent and status", func(t *testing.T) {
		page, err := svc.ListExecutions(execution.Query{AgentID: "a2", Status: execution.StatusRunning})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, other.ID, page.Items[0].ID)
		assert.Equal(t, DefaultPageLimit, page.Limit)
	})

	t.Run("where on duration", func(t *testing.T) {
		page, err := svc.ListExecutions(execution.Query{Where: `status == "FAILED" && duration_ms > 500`})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, slow.ID, page.Items[0].ID)
	})

	t.Run("where on nested field", func(t *testing.T) {
		page, err := svc.ListExecutions(execution.Query{Where: `[meta.tenant] == "acme"`})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, fast.ID, page.Items[0].ID)
	})

	t.Run("paging", func(t *testing.T) {
		page, err := svc.ListExecutions(execution.Query{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, slow.ID, page.Items[0].ID)
		assert.Equal(t, fast.ID, page.Items[1].ID)

		page, err = svc.ListExecutions(execution.Query{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("invalid where", func(t *testing.T) {
		_, err := svc.ListExecutions(execution.Query{Where: `status ==`})
		assert.True(t, errors.Is(err, ErrInvalidFilter))

		_, err = svc.ListExecutions(execution.Query{Where: `agent_id`})
		assert.True(t, errors.Is(err, ErrInvalidFilter))
	})
}
