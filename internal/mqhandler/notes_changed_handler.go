package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"leannotes/contracts/mq"
	"leannotes/pkg/auth"
	"leannotes/pkg/logger"
)

// SyncTrigger starts a sync cycle without waiting for it.
type SyncTrigger interface {
	TriggerNow()
}

type NotesChangedHandler struct {
	trigger  SyncTrigger
	session  auth.SessionProvider
	deviceID string
	logger   *zap.Logger
}

func NewNotesChangedHandler(trigger SyncTrigger, session auth.SessionProvider, deviceID string, logger *zap.Logger) *NotesChangedHandler {
	return &NotesChangedHandler{
		trigger:  trigger,
		session:  session,
		deviceID: deviceID,
		logger:   logger,
	}
}

// HandleNotesChanged kicks a sync when another device of the signed-in user
// pushed. Notifications are hints: duplicates and losses are harmless because
// the pull is checkpointed.
func (h *NotesChangedHandler) HandleNotesChanged(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mq.NotesChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal notes changed payload", zap.Error(err))
		return err
	}

	userID, ok := h.session.UserID(ctx)
	if !ok || userID != p.UserID {
		log.Debug("Ignoring notification for another user", zap.String("user_id", p.UserID))
		return nil
	}
	if p.DeviceID == h.deviceID {
		return nil
	}

	log.Info("Remote notes changed, triggering sync",
		zap.String("from_device", p.DeviceID),
		zap.Int("pushed", p.Pushed),
	)
	h.trigger.TriggerNow()
	return nil
}
