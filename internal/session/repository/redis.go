package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covera/internal/session/domain"
)

const keySession = "session:%s"

type repo struct {
	client redis.UniversalClient
}

func Provide(client *redis.Client) domain.Repository {
	return NewRedis(client)
}

func NewRedis(client redis.UniversalClient) domain.Repository {
	return &repo{client: client}
}

func (r *repo) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	data, err := r.client.Get(ctx, fmt.Sprintf(keySession, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save rewrites the whole record and restarts its TTL.
func (r *repo) Save(ctx context.Context, state *domain.ConversationState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, fmt.Sprintf(keySession, state.SessionID), data, ttl).Err()
}

func (r *repo) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Del(ctx, fmt.Sprintf(keySession, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
