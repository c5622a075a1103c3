package execution

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents execution and step status.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

var ErrInvalidStatus = errors.New("status must be SUCCEEDED or FAILED")

// IsTerminal reports whether s is an end state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ParseStatus normalizes raw and accepts any known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if s != StatusRunning && !s.IsTerminal() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// ParseTerminalStatus normalizes raw and requires a terminal value.
func ParseTerminalStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsTerminal() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Execution is one orchestration run.
type Execution struct {
	ID             string          `json:"id"`
	AgentID        string          `json:"agent_id"`
	RequestID      *string         `json:"request_id,omitempty"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	UserID         *string         `json:"user_id,omitempty"`
	Channel        *string         `json:"channel,omitempty"`
	Status         Status          `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	DurationMs     *int64          `json:"duration_ms,omitempty"`
	ErrorCode      *string         `json:"error_code,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	InputPayload   json.RawMessage `json:"input_payload,omitempty"`
	OutputPayload  json.RawMessage `json:"output_payload,omitempty"`
	Meta           json.RawMessage `json:"meta,omitempty"`
}

// Failure is the optional error reported when an execution or step ends.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StartExecution holds the inputs for opening an execution.
type StartExecution struct {
	AgentID        string
	RequestID      *string
	ConversationID *string
	UserID         *string
	Channel        *string
	// Status overrides the initial RUNNING status when set.
	Status       Status
	InputPayload json.RawMessage
	Meta         json.RawMessage
}

// EndExecution holds the inputs for closing an execution.
type EndExecution struct {
	Status        Status
	OutputPayload json.RawMessage
	Error         *Failure
}

// Query selects executions for listing.
type Query struct {
	AgentID string
	Status  Status
	// Where is an optional boolean expression over execution fields.
	Where  string
	Limit  int
	Offset int
}

// Detail is the assembled view of one execution.
type Detail struct {
	Execution Execution `json:"execution"`
	Steps     []Step    `json:"steps"`
	Events    []Event   `json:"events"`
}

// DurationMillis returns the elapsed whole milliseconds between start and end.
func DurationMillis(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}

// Split returns pointers to the code and message of f, or nils when f is nil.
func (f *Failure) Split() (*string, *string) {
	if f == nil {
		return nil, nil
	}
	var code, message *string
	if f.Code != "" {
		c := f.Code
		code = &c
	}
	if f.Message != "" {
		m := f.Message
		message = &m
	}
	return code, message
}
