package scout

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// SessionKeeper recycles a long-lived browser session on a fixed cadence.
// Claims-agent sites track session behavior, so the same session is reused
// across deals and checked every few deals rather than per request.
type SessionKeeper struct {
	session    BrowserSession
	checkEvery int
	processed  int
	observer   FallbackObserver
}

// NewSessionKeeper wraps session with a health check every checkEvery deals.
func NewSessionKeeper(session BrowserSession, checkEvery int, observer FallbackObserver) *SessionKeeper {
	if checkEvery <= 0 {
		checkEvery = 10
	}
	return &SessionKeeper{
		session:    session,
		checkEvery: checkEvery,
		observer:   observer,
	}
}

// DealDone records a processed deal and runs the health check when the
// cadence is due. A failed check recycles the session; recycle errors are
// logged rather than returned because the next deal may still succeed on
// a non-browser source.
func (k *SessionKeeper) DealDone(ctx context.Context) {
	if k.session == nil {
		return
	}

	k.processed++
	if k.processed%k.checkEvery != 0 {
		return
	}

	status := "ok"
	if err := k.session.HealthCheck(ctx); err != nil {
		status = "relaunched"
		zap.L().Warn("browser session health check failed, recycling", zap.Error(err))
		if recErr := k.session.Recycle(ctx); recErr != nil {
			status = "recycle_failed"
			zap.L().Error("browser session recycle failed", zap.Error(recErr))
		}
	}

	if k.observer != nil {
		k.observer.Event("SESSION_HEALTH_CHECK", model.Deal{}, map[string]any{
			"status":          status,
			"deals_processed": k.processed,
		})
	}
}

// Close closes the underlying session.
func (k *SessionKeeper) Close() error {
	if k.session == nil {
		return nil
	}
	return k.session.Close()
}
