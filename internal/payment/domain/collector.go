package domain

import "context"

type CollectionRequest struct {
	Amount      int64
	Phone       string
	Reference   string
	Description string
	CallbackURL string
}

type CollectionResponse struct {
	Status               string `json:"status"`
	TransactionReference string `json:"transaction_reference"`
	Message              string `json:"message"`
}

// Collector asks a mobile money operator to debit a subscriber.
type Collector interface {
	Provider() string
	RequestToPay(ctx context.Context, req CollectionRequest) (CollectionResponse, error)
}
