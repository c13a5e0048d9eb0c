package domain

import (
	"context"
	"errors"
	"time"
)

type CreateRequest struct {
	Code           string
	AgentID        string
	AgentName      string
	ReductionType  ReductionType
	ReductionValue float64
	ExpiresAt      *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (PromoCode, error)
	// Validate returns the code when it exists and has not expired.
	Validate(ctx context.Context, code string) (PromoCode, error)
}

var (
	ErrInvalidCode      = errors.New("invalid_promo_code")
	ErrInvalidReduction = errors.New("invalid_reduction")
	ErrNotFound         = errors.New("promo_code_not_found")
	ErrExpired          = errors.New("promo_code_expired")
)
