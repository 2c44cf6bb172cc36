package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/civic-alerts/internal/domain"
)

const codeSpace = 1_000_000

// Store holds at most one live code per key in process memory.
// Codes are single-use and expire TTL after issuance.
type Store struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	codes sync.Map // key -> *domain.VerificationCode
}

func NewStore(name string, ttl time.Duration) *Store {
	return &Store{name: name, ttl: ttl, now: time.Now}
}

// TTL reports how long an issued code stays valid.
func (s *Store) TTL() time.Duration { return s.ttl }

// Issue generates a fresh 6-digit code for key, replacing any live one.
func (s *Store) Issue(key string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	s.codes.Store(key, &domain.VerificationCode{Code: code, IssuedAt: s.now()})
	return code, nil
}

// Check consumes the live code for key when it matches and is within TTL.
// Expired entries are removed as a side effect.
func (s *Store) Check(key, code string) error {
	v, ok := s.codes.Load(key)
	if !ok {
		return fmt.Errorf("no live code for key: %w", domain.ErrInvalidCode)
	}
	entry := v.(*domain.VerificationCode)
	if s.now().Sub(entry.IssuedAt) > s.ttl {
		s.codes.CompareAndDelete(key, entry)
		return fmt.Errorf("code issued at %s: %w", entry.IssuedAt.Format(time.RFC3339), domain.ErrExpiredCode)
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		return fmt.Errorf("code mismatch: %w", domain.ErrInvalidCode)
	}
	// A concurrent Check or a re-issue may have won; only one caller consumes this entry.
	if !s.codes.CompareAndDelete(key, entry) {
		return fmt.Errorf("code already consumed: %w", domain.ErrInvalidCode)
	}
	return nil
}

// Verify is Check reduced to a boolean.
func (s *Store) Verify(key, code string) bool {
	return s.Check(key, code) == nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	removed := 0
	now := s.now()
	s.codes.Range(func(k, v any) bool {
		if now.Sub(v.(*domain.VerificationCode).IssuedAt) > s.ttl {
			if s.codes.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Run sweeps expired codes every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("swept expired verification codes", "store", s.name, "removed", n)
			}
		}
	}
}
