package domain

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns nil, nil when the session does not exist or has expired.
	Get(ctx context.Context, sessionID string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}
