package memory

import (
	"encoding/json"

	"github.com/execution-hub/execution-tracker/internal/domain/agent"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/domain/heartbeat"
)

func cloneRaw(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	return append(json.RawMessage(nil), in...)
}

func clonePtr[T any](in *T) *T {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func cloneAgent(in agent.Agent) agent.Agent {
	in.Tags = append([]string{}, in.Tags...)
	return in
}

func cloneExecution(in execution.Execution) execution.Execution {
	in.RequestID = clonePtr(in.RequestID)
	in.ConversationID = clonePtr(in.ConversationID)
	in.UserID = clonePtr(in.UserID)
	in.Channel = clonePtr(in.Channel)
	in.EndedAt = clonePtr(in.EndedAt)
	in.DurationMs = clonePtr(in.DurationMs)
	in.ErrorCode = clonePtr(in.ErrorCode)
	in.ErrorMessage = clonePtr(in.ErrorMessage)
	in.InputPayload = cloneRaw(in.InputPayload)
	in.OutputPayload = cloneRaw(in.OutputPayload)
	in.Meta = cloneRaw(in.Meta)
	return in
}

func cloneStep(in execution.Step) execution.Step {
	in.TargetSystem = clonePtr(in.TargetSystem)
	in.TargetName = clonePtr(in.TargetName)
	in.EndedAt = clonePtr(in.EndedAt)
	in.DurationMs = clonePtr(in.DurationMs)
	in.IdempotencyKey = clonePtr(in.IdempotencyKey)
	in.ErrorCode = clonePtr(in.ErrorCode)
	in.ErrorMessage = clonePtr(in.ErrorMessage)
	in.RequestPayload = cloneRaw(in.RequestPayload)
	in.ResponsePayload = cloneRaw(in.ResponsePayload)
	if in.Metrics != nil {
		metrics := make(map[string]any, len(in.Metrics))
		for k, v := range in.Metrics {
			metrics[k] = v
		}
		in.Metrics = metrics
	}
	return in
}

func cloneEvent(in execution.Event) execution.Event {
	in.StepID = clonePtr(in.StepID)
	in.Payload = cloneRaw(in.Payload)
	return in
}

func cloneEvents(in []execution.Event) []execution.Event {
	out := make([]execution.Event, 0, len(in))
	for _, event := range in {
		out = append(out, cloneEvent(event))
	}
	return out
}

func cloneHeartbeat(in heartbeat.Heartbeat) heartbeat.Heartbeat {
	in.Meta = cloneRaw(in.Meta)
	return in
}
