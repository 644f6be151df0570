// Package redis provides a ProgressStore shared by every process that
// points at the same Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/logger"
)

// Ensure ProgressStore implements the interface.
var _ driven.ProgressStore = (*ProgressStore)(nil)

// KeyPrefix namespaces progress records.
const KeyPrefix = "sizhen:progress:"

// maxTxAttempts bounds optimistic retries when another writer touches the key.
const maxTxAttempts = 16

// ProgressStore keeps one JSON record per session under KeyPrefix.
// Updates use WATCH/MULTI so concurrent writers to one session retry
// instead of overwriting each other.
type ProgressStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewClient creates a Redis client from connection settings.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewProgressStore creates a progress store. A zero ttl keeps records forever.
func NewProgressStore(client goredis.UniversalClient, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

// Key returns the Redis key for a session.
func Key(userID, sessionID string) string {
	return KeyPrefix + domain.SessionKey(userID, sessionID)
}

// Get returns the progress for a session.
func (s *ProgressStore) Get(ctx context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	data, err := s.client.Get(ctx, Key(userID, sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return decodeProgress(data)
}

// Update applies fn to the session's record inside an optimistic transaction.
func (s *ProgressStore) Update(
	ctx context.Context,
	userID, sessionID string,
	fn func(*domain.DiagnosisProgress),
) (*domain.DiagnosisProgress, error) {
	key := Key(userID, sessionID)
	var result *domain.DiagnosisProgress

	txf := func(tx *goredis.Tx) error {
		progress, err := s.read(ctx, tx, key, userID, sessionID)
		if err != nil {
			return err
		}

		fn(progress)

		data, err := json.Marshal(progress)
		if err != nil {
			return fmt.Errorf("marshal progress: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = progress
		return nil
	}

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return nil, fmt.Errorf("update progress: %w", err)
		}
		logger.Debug("progress %s: concurrent write, retrying (%d)", key, attempt)
	}
	return nil, fmt.Errorf("update progress %s: %w", key, goredis.TxFailedErr)
}

func (s *ProgressStore) read(ctx context.Context, tx *goredis.Tx, key, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.NewDiagnosisProgress(userID, sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeProgress(data)
}

func decodeProgress(data []byte) (*domain.DiagnosisProgress, error) {
	var progress domain.DiagnosisProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &progress, nil
}
