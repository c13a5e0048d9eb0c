package domain

import (
	"context"
	"errors"
)

type ChatRequest struct {
	SessionID   string
	Phone       string
	Message     string
	MediaURL    string
	MessageType string
}

type ChatReply struct {
	Reply     string         `json:"reply"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
}

type Service interface {
	// Chat runs one conversational turn. The reply is always set, also when
	// err reports throttling or a busy session.
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
}

var (
	ErrEmptyMessage = errors.New("empty_message")
	ErrRateLimited  = errors.New("chat_rate_limited")
	ErrSessionBusy  = errors.New("session_busy")
)
