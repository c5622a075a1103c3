package heartbeat

import (
	"encoding/json"
	"time"
)

// Heartbeat is the latest liveness report of one worker process.
type Heartbeat struct {
	WorkerID   string          `json:"worker_id"`
	Host       string          `json:"host"`
	Env        string          `json:"env"`
	LastSeenAt time.Time       `json:"last_seen_at"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

// Beat is the caller-supplied part of a heartbeat. The timestamp is always
// assigned by the store.
type Beat struct {
	WorkerID string
	Host     string
	Env      string
	Meta     json.RawMessage
}
