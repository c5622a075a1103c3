package tracking

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

func TestCompileFilterRejectsNonBoolean(t *testing.T) {
	for _, where := range []string{`1 + 1`, `agent_id`, `duration_ms * 2`, `"text"`} {
		t.Run(where, func(t *testing.T) {
			f, err := CompileFilter(where)
			assert.True(t, errors.Is(err, ErrInvalidFilter), "got %v", err)
			assert.Nil(t, f)
		})
	}
}

func TestCompileFilterAcceptsPayloadFields(t *testing.T) {
	f, err := CompileFilter(`[meta.tenant] == "acme"`)
	require.NoError(t, err)

	ok, err := f.Match(execution.Execution{Meta: json.RawMessage(`{"tenant":"acme"}`)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Match(execution.Execution{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileFilterEmptyMatchesAll(t *testing.T) {
	f, err := CompileFilter("  ")
	require.NoError(t, err)
	assert.Nil(t, f)

	ok, err := f.Match(execution.Execution{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchPayloadNonBooleanIsError(t *testing.T) {
	f, err := CompileFilter(`[meta.score]`)
	require.NoError(t, err)

	_, err = f.Match(execution.Execution{Meta: json.RawMessage(`{"score":3}`)})
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestExecutionParamsFlattensObjectsOnly(t *testing.T) {
	params := executionParams(execution.Execution{
		AgentID: "a1",
		Meta:    json.RawMessage(`{"tenant":{"id":"t1"},"labels":["x"]}`),
	})

	assert.Equal(t, "a1", params["agent_id"])
	assert.Equal(t, "t1", params["meta.tenant.id"])
	assert.Equal(t, []interface{}{"x"}, params["meta.labels"])
	_, hasObject := params["meta"]
	assert.False(t, hasObject)
}
