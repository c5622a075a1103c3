package execution

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_sink.go -package=mocks . EventSink

import (
	"context"
)

// EventSink receives events after they are appended to the log.
type EventSink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}
