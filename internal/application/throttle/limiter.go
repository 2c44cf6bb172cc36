package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
)

const (
	// maxRetries bounds the optimistic read-evaluate-write loop.
	maxRetries = 5
	// busyRetryAfterSeconds is the hint returned when retries are exhausted
	// or the ledger store is unreachable.
	busyRetryAfterSeconds = 10
)

// LedgerStore persists throttle ledgers with optimistic concurrency.
// Get returns an empty ledger when the key holds no sends; its Version is the
// one Save must be given to create it.
// Save must fail with domain.ErrConflict when the stored version differs
// from expectedVersion, and on success store ledger with Version expectedVersion+1.
type LedgerStore interface {
	Get(ctx context.Context, key string) (*domain.ThrottleLedger, error)
	Save(ctx context.Context, ledger *domain.ThrottleLedger, expectedVersion int64) error
}

// Limiter enforces a per-key cooldown and a sliding-window cap on sends.
type Limiter struct {
	store  LedgerStore
	policy config.ThrottlePolicy
	name   string
}

func NewLimiter(name string, store LedgerStore, policy config.ThrottlePolicy) *Limiter {
	return &Limiter{store: store, policy: policy, name: name}
}

// Attempt records a send for key at now if the policy allows it. A rejected
// attempt returns a *domain.RetryAfterError wrapping ErrRateLimited or ErrServerBusy.
func (l *Limiter) Attempt(ctx context.Context, key string, now time.Time) error {
	ts := now.Unix()
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ledger, err := l.store.Get(ctx, key)
		if err != nil {
			slog.Error("throttle ledger read failed", "limiter", l.name, "key", key, "err", err)
			return busy("ledger unavailable")
		}
		expected := ledger.Version
		sends := prune(ledger.Sends, ts, l.policy.WindowSeconds)

		if n := len(sends); n > 0 {
			sinceLast := ts - sends[n-1]
			if sinceLast < l.policy.CooldownSeconds {
				return &domain.RetryAfterError{
					Reason:            domain.ErrRateLimited,
					Detail:            "cooldown active",
					RetryAfterSeconds: l.policy.CooldownSeconds - sinceLast,
				}
			}
		}
		if len(sends) >= l.policy.MaxPerWindow {
			retryAfter := l.policy.WindowSeconds - (ts - sends[0])
			if retryAfter < 0 {
				retryAfter = 0
			}
			return &domain.RetryAfterError{
				Reason:            domain.ErrRateLimited,
				Detail:            "exceeded max sends",
				RetryAfterSeconds: retryAfter,
			}
		}

		next := &domain.ThrottleLedger{Key: key, Sends: append(sends, ts)}
		err = l.store.Save(ctx, next, expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			slog.Error("throttle ledger write failed", "limiter", l.name, "key", key, "err", err)
			return busy("ledger unavailable")
		}
		slog.Debug("throttle ledger conflict, retrying", "limiter", l.name, "key", key, "attempt", attempt)
	}
	return busy(fmt.Sprintf("%d concurrent modifications", maxRetries))
}

// prune returns a fresh slice holding only timestamps inside the window.
func prune(sends []int64, now, window int64) []int64 {
	out := make([]int64, 0, len(sends)+1)
	for _, ts := range sends {
		if now-ts > window {
			continue
		}
		out = append(out, ts)
	}
	return out
}

func busy(detail string) error {
	return &domain.RetryAfterError{
		Reason:            domain.ErrServerBusy,
		Detail:            detail,
		RetryAfterSeconds: busyRetryAfterSeconds,
	}
}
