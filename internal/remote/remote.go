// Package remote is the shared store every device converges against.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"leannotes/pkg/util"
)

// Record is one note as the remote store holds it. ClientID is the local id of
// the device that created the note and is the upsert idempotency key.
type Record struct {
	ClientID  string    `json:"client_id"`
	RemoteID  string    `json:"remote_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeviceID  string    `json:"device_id"`
	Deleted   bool      `json:"deleted"`
	Revision  int64     `json:"revision"`
}

// UpsertResult reports where the pushed record landed. When Applied is false the
// remote already held a copy at least as new, returned in Current.
type UpsertResult struct {
	RemoteID string
	Revision int64
	Applied  bool
	Current  *Record
}

type Store interface {
	Upsert(ctx context.Context, userID string, rec Record) (UpsertResult, error)
	// ChangedSince returns records with revision > since in revision order.
	ChangedSince(ctx context.Context, userID string, since int64, limit int) ([]Record, error)
}

// Validate rejects records that would fail identically on every retry.
func Validate(rec Record, maxContentBytes int) error {
	if rec.ClientID == "" {
		return fmt.Errorf("%w: missing client id", util.ErrInvalidData)
	}
	if !utf8.ValidString(rec.Content) {
		return fmt.Errorf("%w: content is not valid UTF-8", util.ErrInvalidData)
	}
	if strings.ContainsRune(rec.Content, 0) {
		return fmt.Errorf("%w: content contains NUL bytes", util.ErrInvalidData)
	}
	if maxContentBytes > 0 && len(rec.Content) > maxContentBytes {
		return fmt.Errorf("%w: content is %d bytes, limit %d", util.ErrInvalidData, len(rec.Content), maxContentBytes)
	}
	return nil
}
