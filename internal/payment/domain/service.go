package domain

import (
	"context"
	"errors"

	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
)

var (
	ErrInvalidMethod        = errors.New("invalid_payment_method")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrAmountMismatch       = errors.New("amount_mismatch")
	ErrInvalidPhone         = errors.New("invalid_phone")
	ErrInvalidCustomerName  = errors.New("invalid_customer_name")
	ErrProviderNotFound     = errors.New("payment_provider_not_found")
	ErrGatewayUnavailable   = errors.New("payment_gateway_unavailable")
	ErrGatewayRejected      = errors.New("payment_gateway_rejected")
	ErrDuplicateReference   = errors.New("duplicate_payment_reference")
	ErrMissingReference     = errors.New("missing_transaction_reference")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrProposalNotDelivered = errors.New("proposal_not_delivered")
)

type InitiateRequest struct {
	SubscriptionID string
	Method         Method
	Amount         int64
	Phone          string
	CustomerName   string
}

type Initiated struct {
	Transaction      Transaction
	Reference        string
	Provider         string
	Phone            string
	GatewayReference string
	Message          string
	DocumentURL      string
	ProposalOutcome  documentdomain.RenderKind
}

// Callback is a parsed gateway notification.
type Callback struct {
	Reference      string
	ExternalStatus string
	Provider       string
	Payload        []byte
}

type ReconcileResult struct {
	Reference string
	Status    subscriptiondomain.Status
	Provider  string
	Replayed  bool
	Applied   bool
}

type Service interface {
	// InitiateCollection starts an online mobile money collection. The amount
	// must equal the subscription's premium.
	InitiateCollection(ctx context.Context, req InitiateRequest) (Initiated, error)
	// InitiateDeferred records a pay-on-delivery or pay-on-agency settlement
	// and issues the proposal document.
	InitiateDeferred(ctx context.Context, req InitiateRequest) (Initiated, error)
	Reconcile(ctx context.Context, cb Callback) (ReconcileResult, error)
	// ReplayPending reconciles notifications left unprocessed.
	ReplayPending(ctx context.Context, limit int) (int, error)
	IsConfirmed(ctx context.Context, reference string) (bool, error)
	FindTransaction(ctx context.Context, reference string) (Transaction, error)
}
