package domain

import (
	"context"
	"errors"
)

type Service interface {
	// LoadOrCreate rehydrates a session, creating it on first contact. An
	// empty sessionID starts a new conversation under a generated id.
	LoadOrCreate(ctx context.Context, sessionID, phone string) (*ConversationState, bool, error)
	Get(ctx context.Context, sessionID string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, sessionID string) error
	Summary(ctx context.Context, sessionID string) (Summary, error)
}

var (
	ErrNotFound         = errors.New("session_not_found")
	ErrInvalidSessionID = errors.New("invalid_session_id")
)
