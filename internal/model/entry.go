package model

import "time"

type SyncState string

const (
	SyncStateUnsynced SyncState = "unsynced"
	SyncStateSyncing  SyncState = "syncing"
	SyncStateSynced   SyncState = "synced"
	SyncStateStale    SyncState = "stale"
)

// Pushable reports whether an entry in this state is eligible for push.
func (s SyncState) Pushable() bool {
	return s == SyncStateUnsynced || s == SyncStateStale
}

// Entry is a single captured note. ID is assigned locally and doubles as the
// idempotency key sent to the remote store.
type Entry struct {
	ID        string     `json:"id"`
	RemoteID  *string    `json:"remote_id,omitempty"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeviceID  string     `json:"device_id"`
	SyncState SyncState  `json:"sync_state"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (e *Entry) Deleted() bool {
	return e.DeletedAt != nil
}

// Version identifies the content revision enrichment records are attached to.
func (e *Entry) Version() int64 {
	return e.UpdatedAt.UnixMilli()
}
