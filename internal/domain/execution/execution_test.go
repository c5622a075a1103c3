package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerminalStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "SUCCEEDED", want: StatusSucceeded},
		{raw: " failed ", want: StatusFailed},
		{raw: "RUNNING", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "DONE", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTerminalStatus(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus("running")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got)

	got, err = ParseStatus("FAILED")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got)

	_, err = ParseStatus("PAUSED")
	assert.Error(t, err)
}

func TestDurationMillis(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(1500), DurationMillis(start, start.Add(1500*time.Millisecond)))
	assert.Equal(t, int64(0), DurationMillis(start, start.Add(999*time.Microsecond)))
	assert.Equal(t, int64(2), DurationMillis(start, start.Add(2*time.Millisecond+700*time.Microsecond)))
}

func TestFailureSplit(t *testing.T) {
	var nilFailure *Failure
	code, msg := nilFailure.Split()
	assert.Nil(t, code)
	assert.Nil(t, msg)

	code, msg = (&Failure{Code: "RFC_TIMEOUT"}).Split()
	require.NotNil(t, code)
	assert.Equal(t, "RFC_TIMEOUT", *code)
	assert.Nil(t, msg)
}

func TestMergeMetrics(t *testing.T) {
	supplied := map[string]any{"duration_ms": 999, "rows": 12}

	merged := MergeMetrics(supplied, 42)

	assert.Equal(t, int64(42), merged[MetricDurationMs])
	assert.Equal(t, 12, merged["rows"])
	assert.Equal(t, 999, supplied["duration_ms"], "caller map must not be mutated")

	empty := MergeMetrics(nil, 7)
	assert.Equal(t, map[string]any{MetricDurationMs: int64(7)}, empty)
}

func TestSortSteps(t *testing.T) {
	steps := []Step{
		{ID: "c", StepSeq: 3},
		{ID: "a", StepSeq: 1},
		{ID: "b1", StepSeq: 2},
		{ID: "b2", StepSeq: 2},
	}

	SortSteps(steps)

	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
}

func TestSortEvents(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "late", Seq: 1, EventTime: base.Add(time.Second)},
		{ID: "tie-second", Seq: 3, EventTime: base},
		{ID: "tie-first", Seq: 2, EventTime: base},
	}

	SortEvents(events)

	assert.Equal(t, "tie-first", events[0].ID)
	assert.Equal(t, "tie-second", events[1].ID)
	assert.Equal(t, "late", events[2].ID)
}
