package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

// EventArchive copies events into execution_events. The tracker never reads
// its state back from here.
type EventArchive struct {
	pool *pgxpool.Pool
}

func NewEventArchive(pool *pgxpool.Pool) *EventArchive {
	return &EventArchive{pool: pool}
}

func (a *EventArchive) Name() string {
	return "postgres"
}

// Send inserts the event; redelivery of the same event id is a no-op.
func (a *EventArchive) Send(ctx context.Context, event execution.Event) error {
	var payload []byte
	if len(event.Payload) > 0 {
		payload = event.Payload
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO execution_events
		(event_id, seq, execution_id, step_id, event_type, event_time, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (event_id) DO NOTHING
	`, event.ID, event.Seq, event.ExecutionID, event.StepID, string(event.Type), event.EventTime, payload)
	if err != nil {
		return fmt.Errorf("archive event %s: %w", event.ID, err)
	}
	return nil
}

// ListByExecution returns archived events of one execution in log order.
func (a *EventArchive) ListByExecution(ctx context.Context, executionID string) ([]execution.Event, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT event_id, seq, execution_id, step_id, event_type, event_time, payload
		FROM execution_events WHERE execution_id=$1
		ORDER BY event_time ASC, seq ASC
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]execution.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (execution.Event, error) {
	var (
		e         execution.Event
		eventType string
		payload   []byte
	)
	if err := row.Scan(&e.ID, &e.Seq, &e.ExecutionID, &e.StepID, &eventType, &e.EventTime, &payload); err != nil {
		return execution.Event{}, err
	}
	e.Type = execution.EventType(eventType)
	e.EventTime = e.EventTime.UTC()
	if len(payload) > 0 {
		e.Payload = payload
	}
	return e, nil
}
