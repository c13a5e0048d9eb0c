package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateRequest struct {
	CustomerID  string
	ProductType string
	Premium     int64
	Coverage    string
	PromoCode   string
	Source      string
}

type Service interface {
	// Create checks the customer before writing; the new row is en_cours.
	Create(ctx context.Context, req CreateRequest) (Subscription, error)
	Get(ctx context.Context, id string) (Subscription, error)
	// SaveDetail attaches the product detail once; it never overwrites.
	SaveDetail(ctx context.Context, subscriptionID string, detail Detail) error
	// RequireSettleable returns the subscription when it and its detail exist
	// and its status is not terminal.
	RequireSettleable(ctx context.Context, subscriptionID string) (Subscription, error)
	// UpdateStatus applies next and reports whether the stored status changed.
	UpdateStatus(ctx context.Context, id snowflake.ID, next Status) (bool, error)
	// UpdateStatusTx is UpdateStatus running on the caller's transaction.
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, next Status) (bool, error)
}

var (
	ErrInvalidCustomerID     = errors.New("invalid_customer_id")
	ErrCustomerNotFound      = errors.New("customer_not_found")
	ErrInvalidProductType    = errors.New("invalid_product_type")
	ErrInvalidPremium        = errors.New("invalid_premium")
	ErrInvalidPromoCode      = errors.New("invalid_promo_code")
	ErrInvalidSubscriptionID = errors.New("invalid_subscription_id")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrProductMismatch       = errors.New("detail_product_mismatch")
	ErrDetailExists          = errors.New("detail_already_exists")
	ErrDetailMissing         = errors.New("detail_missing")
	ErrNotSettleable         = errors.New("subscription_not_settleable")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidTransition     = errors.New("invalid_transition")
)
