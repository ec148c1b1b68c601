package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisSaveAttempts = 3

// RedisStore keeps each draft as a JSON value under prefix+userID. Saves run
// in a WATCH transaction and are retried when the key changes underneath.
// Unsubmitted drafts expire after ttl when ttl is positive.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	opts   Options
}

var _ DraftStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "intake:draft:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, opts: opts}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) key(userID string) string {
	return r.prefix + userID
}

func decodeDraft(raw string) (*models.Draft, error) {
	var d models.Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode stored draft: %w", err)
	}
	return &d, nil
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*models.Draft, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailableError(r.Name(), err)
	}
	d, err := decodeDraft(raw)
	if err != nil {
		return nil, errors.NewStoreUnavailableError(r.Name(), err)
	}
	return d, nil
}

func (r *RedisStore) Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	if req.UserID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}
	key := r.key(req.UserID)

	var saved *models.Draft
	txf := func(tx *redis.Tx) error {
		var existing *models.Draft
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case stderrors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if existing, err = decodeDraft(raw); err != nil {
				return err
			}
		}

		draft, err := apply(existing, req, r.opts)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(draft)
		if err != nil {
			return err
		}

		ttl := r.ttl
		if draft.Submitted || ttl < 0 {
			ttl = 0
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err == nil {
			saved = draft
		}
		return err
	}

	var err error
	for attempt := 0; attempt < redisSaveAttempts; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		if !stderrors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.AsStandard(err).Code != errors.ErrCodeInternal {
			return nil, err
		}
		return nil, errors.NewStoreUnavailableError(r.Name(), err)
	}
	return saved, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
