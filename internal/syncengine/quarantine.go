package syncengine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/metrics"
	"leannotes/pkg/util"
)

const failureHandler = "sync_push"

// FailureCounter counts consecutive permanent failures per key.
// Implemented by repository.FailureRepository and util.RetryCounter.
type FailureCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Fingerprint identifies the shape of an entry as pushed. Any edit changes it,
// which releases the entry from quarantine.
func Fingerprint(e *model.Entry) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(e.Content))
	if e.Deleted() {
		h.Write([]byte{0xff})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Quarantine excludes entries that keep failing with permanent data errors.
type Quarantine struct {
	repo      *repository.QuarantineRepository
	failures  FailureCounter
	threshold int64
	logger    *zap.Logger
	now       func() time.Time
}

func NewQuarantine(repo *repository.QuarantineRepository, failures FailureCounter, threshold int64, logger *zap.Logger) *Quarantine {
	if threshold <= 0 {
		threshold = 3
	}
	return &Quarantine{repo: repo, failures: failures, threshold: threshold, logger: logger, now: time.Now}
}

// Check reports whether the entry, as it is now, is quarantined. An entry whose
// fingerprint moved on since it was quarantined is released.
func (q *Quarantine) Check(ctx context.Context, e *model.Entry) (bool, error) {
	rec, err := q.repo.Get(ctx, e.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.Fingerprint == Fingerprint(e) {
		return true, nil
	}

	q.logger.Info("Releasing entry from quarantine after edit", zap.String("entry_id", e.ID))
	if err := q.repo.Delete(ctx, e.ID); err != nil {
		return false, err
	}
	if err := q.failures.Reset(ctx, util.FormatRetryKey(failureHandler, e.ID)); err != nil {
		return false, err
	}
	return false, nil
}

// RecordFailure counts a permanent failure and quarantines the entry at the
// threshold. Only the quarantining failure is logged.
func (q *Quarantine) RecordFailure(ctx context.Context, e *model.Entry, cause error) (bool, error) {
	count, err := q.failures.IncrementAndGet(ctx, util.FormatRetryKey(failureHandler, e.ID))
	if err != nil {
		return false, fmt.Errorf("failed to count push failure: %w", err)
	}
	if count < q.threshold {
		return false, nil
	}

	_, errType := util.IsRetryableError(cause)
	rec := repository.QuarantineRecord{
		EntryID:       e.ID,
		Fingerprint:   Fingerprint(e),
		Reason:        errType + ": " + cause.Error(),
		QuarantinedAt: q.now(),
	}
	if err := q.repo.Put(ctx, rec); err != nil {
		return false, err
	}
	metrics.IncrementQuarantine()
	q.logger.Warn("Entry quarantined",
		zap.String("entry_id", e.ID),
		zap.Int64("failures", count),
		zap.String("error_type", errType),
		zap.Error(cause),
	)
	return true, nil
}

// Clear resets the failure count after a successful push.
func (q *Quarantine) Clear(ctx context.Context, e *model.Entry) error {
	return q.failures.Reset(ctx, util.FormatRetryKey(failureHandler, e.ID))
}
