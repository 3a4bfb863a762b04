// Package result implements the Game Result Ingestor: the callback path
// through which the external game server reports a battle's outcome.
package result

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/bus"
	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	"github.com/amazingchow/game-companion-gateway/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	maxAttempts = 3
	minBackoff  = 1 * time.Second
	maxBackoff  = 60 * time.Second
)

// resultStore is the subset of *store.Store the ingestor depends on.
type resultStore interface {
	InsertGameResult(ctx context.Context, res store.GameResult) error
	ApplyResultToStats(ctx context.Context, userID, gameIndex string, win bool, now int64) error
}

// eventPublisher is the subset of *bus.Producer the ingestor depends on.
type eventPublisher interface {
	PublishGameResult(ctx context.Context, res bus.GameResult)
}

// Ingestor accepts callback payloads from the external game server.
type Ingestor struct {
	store     resultStore
	publisher eventPublisher
}

// NewIngestor builds an Ingestor.
func NewIngestor(s resultStore, p eventPublisher) *Ingestor {
	return &Ingestor{store: s, publisher: p}
}

// isTransient reports whether err is worth retrying: network/timeout/
// write-concern errors, as opposed to validation failures or the duplicate
// idempotency rejection (which is itself not an error condition for the caller).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") ||
			cmdErr.HasErrorLabel("RetryableWriteError") ||
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	var wcErr mongo.WriteConcernError
	return errors.As(err, &wcErr)
}

// Ingest validates, persists, and recomputes aggregates for res, then
// publishes the corresponding GameResult event. Persistence runs inside a
// bounded exponential-backoff retry loop (3 attempts, 1-60s, transient
// errors only); a duplicate result (already ingested under the same
// (app_user_id, create_ts) key) is treated as success, not retried.
func (i *Ingestor) Ingest(ctx context.Context, res store.GameResult) error {
	if res.AppUserID == "" || res.AppRoomID == "" {
		return errors.New("result: missing required identifiers")
	}
	if res.CreateTs == 0 {
		res.CreateTs = time.Now().UnixMilli()
	}

	err := i.withRetry(ctx, func() error {
		insertErr := i.store.InsertGameResult(ctx, res)
		if errors.Is(insertErr, store.ErrDuplicateResult) {
			return nil
		}
		return insertErr
	})
	if err != nil {
		metrics.ResultIngestTotal.WithLabelValues("error").Inc()
		logging.Error(ctx, "game result ingestion failed", zap.String("app_user_id", res.AppUserID), zap.Error(err))
		return err
	}

	win := res.ResultWin != nil && *res.ResultWin
	if statsErr := i.withRetry(ctx, func() error {
		return i.store.ApplyResultToStats(ctx, res.AppUserID, res.AppGameIndex, win, res.CreateTs)
	}); statsErr != nil {
		logging.Warn(ctx, "game result stats update failed", zap.String("app_user_id", res.AppUserID), zap.Error(statsErr))
	}

	metrics.ResultIngestTotal.WithLabelValues("ok").Inc()

	i.publisher.PublishGameResult(ctx, bus.GameResult{
		TraceID:       res.TraceID,
		StatusCode:    res.StatusCode,
		AppUserID:     res.AppUserID,
		AppAIPlayerID: res.AppAIPlayerID,
		AppRoomID:     res.AppRoomID,
		AppGameIndex:  res.AppGameIndex,
		GameRegion:    res.GameRegion,
		GameUID:       res.GameUID,
		GameBID:       res.GameBID,
		OrderID:       res.OrderID,
		ResultType:    res.ResultType,
		ResultGameIdx: res.ResultGameIdx,
		ResultWin:     res.ResultWin,
		ResultScreens: res.ResultScreens,
		ReceiveTimeMs: res.CreateTs,
		Detail:        res.Extra,
	})
	return nil
}

func (i *Ingestor) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if !isTransient(err) {
				return err
			}
			if attempt == maxAttempts-1 {
				break
			}
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}

func backoffDelay(attempt int) time.Duration {
	d := minBackoff * time.Duration(math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}
