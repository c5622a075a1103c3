package execution

import (
	"encoding/json"
	"sort"
	"time"
)

// MetricDurationMs is the metrics key forced on every ended step.
const MetricDurationMs = "duration_ms"

// Step is one unit of work inside an execution, typically one downstream call.
type Step struct {
	ID              string          `json:"id"`
	ExecutionID     string          `json:"execution_id"`
	StepSeq         int             `json:"step_seq"`
	Name            string          `json:"name"`
	StepType        string          `json:"step_type"`
	TargetSystem    *string         `json:"target_system,omitempty"`
	TargetName      *string         `json:"target_name,omitempty"`
	Status          Status          `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationMs      *int64          `json:"duration_ms,omitempty"`
	RetryCount      int             `json:"retry_count"`
	IdempotencyKey  *string         `json:"idempotency_key,omitempty"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	Metrics         map[string]any  `json:"metrics"`
	ErrorCode       *string         `json:"error_code,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
}

// StartStep holds the inputs for opening a step.
type StartStep struct {
	StepSeq        int
	Name           string
	StepType       string
	TargetSystem   *string
	TargetName     *string
	RetryCount     int
	IdempotencyKey *string
	RequestPayload json.RawMessage
}

// EndStep holds the inputs for closing a step.
type EndStep struct {
	Status          Status
	ResponsePayload json.RawMessage
	Metrics         map[string]any
	Error           *Failure
}

// MergeMetrics copies supplied and sets duration_ms, replacing any caller value.
func MergeMetrics(supplied map[string]any, durationMs int64) map[string]any {
	out := make(map[string]any, len(supplied)+1)
	for k, v := range supplied {
		out[k] = v
	}
	out[MetricDurationMs] = durationMs
	return out
}

// SortSteps orders steps by step_seq; equal seqs keep their creation order.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepSeq < steps[j].StepSeq
	})
}
