package execution

import (
	"encoding/json"
	"sort"
	"time"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventExecutionStarted EventType = "EXECUTION_STARTED"
	EventExecutionEnded   EventType = "EXECUTION_ENDED"
	EventStepStarted      EventType = "STEP_STARTED"
	EventStepEnded        EventType = "STEP_ENDED"
)

// Event is an immutable record of one transition.
type Event struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	ExecutionID string          `json:"execution_id"`
	StepID      *string         `json:"step_id,omitempty"`
	Type        EventType       `json:"event_type"`
	EventTime   time.Time       `json:"event_time"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type ExecutionStartedPayload struct {
	AgentID string  `json:"agent_id"`
	Channel *string `json:"channel"`
}

type ExecutionEndedPayload struct {
	Status     Status  `json:"status"`
	DurationMs int64   `json:"duration_ms"`
	ErrorCode  *string `json:"error_code"`
}

type StepStartedPayload struct {
	StepName string `json:"step_name"`
	StepType string `json:"step_type"`
	StepSeq  int    `json:"step_seq"`
}

type StepEndedPayload struct {
	StepName   string  `json:"step_name"`
	Status     Status  `json:"status"`
	DurationMs int64   `json:"duration_ms"`
	ErrorCode  *string `json:"error_code"`
}

// SortEvents orders events by event_time, then by append sequence.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].EventTime.Equal(events[j].EventTime) {
			return events[i].Seq < events[j].Seq
		}
		return events[i].EventTime.Before(events[j].EventTime)
	})
}
