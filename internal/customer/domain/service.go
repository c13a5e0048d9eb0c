package domain

import (
	"context"
	"errors"
)

type ResolveRequest struct {
	Phone   string
	Profile Profile
}

type ResolveResult struct {
	Customer Customer `json:"customer"`
	Existing bool     `json:"existing"`
}

type Service interface {
	// ResolveOrCreate is idempotent per phone number.
	ResolveOrCreate(ctx context.Context, req ResolveRequest) (ResolveResult, error)
	GetByID(ctx context.Context, id string) (Customer, error)
}

var (
	ErrInvalidPhone = errors.New("invalid_phone")
	ErrInvalidID    = errors.New("invalid_customer_id")
	ErrNotFound     = errors.New("customer_not_found")
)
