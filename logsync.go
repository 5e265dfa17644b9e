package courier

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultLogPushConcurrency bounds parallel history uploads.
const DefaultLogPushConcurrency = 4

// LogSyncer pushes unsynced call and SMS rows to the backend one record at
// a time. It is independent of the preference ledger.
type LogSyncer struct {
	store       *Store
	gateway     Gateway
	concurrency int
	retention   time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func newLogSyncer(store *Store, gw Gateway, concurrency int, retention time.Duration, log zerolog.Logger) *LogSyncer {
	if concurrency <= 0 {
		concurrency = DefaultLogPushConcurrency
	}
	return &LogSyncer{
		store:       store,
		gateway:     gw,
		concurrency: concurrency,
		retention:   retention,
		log:         log.With().Str("component", "logsync").Logger(),
		now:         time.Now,
	}
}

// Sync pushes every unsynced call and SMS row for userID.
//
// A record the backend fails to accept stays unsynced and is retried on the
// next pass; it never aborts the others. Only local storage failures are
// returned as errors. After each kind is pushed, synced rows older than the
// retention window are purged.
func (l *LogSyncer) Sync(ctx context.Context, userID int64) (*LogSyncResult, error) {
	if l.gateway == nil {
		return nil, ErrOffline
	}
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}

	start := l.now()
	result := &LogSyncResult{}

	calls, err := l.syncKind(ctx, userID, LogKindCall)
	if err != nil {
		return nil, err
	}
	result.Calls = calls

	sms, err := l.syncKind(ctx, userID, LogKindSMS)
	if err != nil {
		return nil, err
	}
	result.SMS = sms

	if err := l.store.setMetadataTime(metaLastLogSync, l.now()); err != nil {
		return nil, err
	}
	result.Duration = l.now().Sub(start)

	l.log.Info().
		Int("calls_pushed", calls.Pushed).
		Int("calls_failed", calls.Failed).
		Int("sms_pushed", sms.Pushed).
		Int("sms_failed", sms.Failed).
		Msg("log sync complete")
	return result, nil
}

func (l *LogSyncer) syncKind(ctx context.Context, userID int64, kind LogKind) (KindSyncResult, error) {
	records, err := l.store.ListUnsynced(kind)
	if err != nil {
		return KindSyncResult{}, fmt.Errorf("log sync %s: %w", kind, err)
	}

	var pushed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, rec := range records {
		g.Go(func() error {
			resp, err := l.gateway.PushHistory(gctx, NewHistoryRecord(userID, rec))
			if err == nil && !resp.Success {
				err = &BackendRejection{Operation: "push_history", StatusCode: 200, Message: resp.Message}
			}
			if err != nil {
				l.log.Warn().Err(err).Str("kind", string(kind)).Str("id", rec.LogID()).Msg("history push failed")
				failed.Add(1)
				return nil // leave unsynced, keep going
			}

			if err := l.store.MarkSynced(kind, rec.LogID()); err != nil {
				return fmt.Errorf("log sync %s: %w", kind, err)
			}
			pushed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return KindSyncResult{}, err
	}

	result := KindSyncResult{Pushed: int(pushed.Load()), Failed: int(failed.Load())}

	if l.retention > 0 {
		purged, err := l.store.PurgeSyncedBefore(kind, l.now().Add(-l.retention))
		if err != nil {
			return KindSyncResult{}, fmt.Errorf("log sync %s: %w", kind, err)
		}
		result.Purged = purged
	}
	return result, nil
}
