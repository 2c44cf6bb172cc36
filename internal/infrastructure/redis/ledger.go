package redisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "throttle:"

// NewClient opens a Redis client from configuration.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// LedgerStore keeps resend ledgers in Redis. Conditional saves use
// WATCH/MULTI so a concurrent writer aborts the transaction.
type LedgerStore struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewLedgerStore(rdb *redis.Client, retention time.Duration) *LedgerStore {
	return &LedgerStore{rdb: rdb, retention: retention}
}

func (s *LedgerStore) Get(ctx context.Context, key string) (*domain.ThrottleLedger, error) {
	ledger, err := readLedger(ctx, s.rdb, key)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// Save stores ledger as version expectedVersion+1 when the current stored
// version equals expectedVersion, and returns domain.ErrConflict otherwise.
func (s *LedgerStore) Save(ctx context.Context, ledger *domain.ThrottleLedger, expectedVersion int64) error {
	rkey := keyPrefix + ledger.Key
	next := *ledger
	next.Version = expectedVersion + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal throttle ledger: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readLedger(ctx, tx, ledger.Key)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return domain.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, data, s.retention)
			return nil
		})
		return err
	}, rkey)

	switch {
	case err == nil:
		ledger.Version = next.Version
		return nil
	case errors.Is(err, domain.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("throttle ledger %s at version %d: %w", ledger.Key, expectedVersion, domain.ErrConflict)
	default:
		return fmt.Errorf("save throttle ledger: %w", err)
	}
}

// getter is the slice of the client API shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readLedger(ctx context.Context, c getter, key string) (*domain.ThrottleLedger, error) {
	raw, err := c.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.ThrottleLedger{Key: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get throttle ledger: %w", err)
	}
	var l domain.ThrottleLedger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("unmarshal throttle ledger: %w", err)
	}
	l.Key = key
	return &l, nil
}
