package mq

import "time"

const RoutingKeyNotesChanged = "notes.changed"

// NotesChangedPayload tells other devices of the same user that the remote
// store has new revisions.
type NotesChangedPayload struct {
	UserID   string    `json:"user_id"`
	DeviceID string    `json:"device_id"`
	Pushed   int       `json:"pushed"`
	At       time.Time `json:"at"`
	TraceID  string    `json:"trace_id,omitempty"`
}
