package epay

import (
	"context"
	"net/url"

	"github.com/smallbiznis/covera/internal/payment/domain"
)

type Airtel struct {
	client *Client
}

func NewAirtel(client *Client) *Airtel {
	return &Airtel{client: client}
}

func (a *Airtel) Provider() string { return domain.ProviderAirtel }

func (a *Airtel) RequestToPay(ctx context.Context, req domain.CollectionRequest) (domain.CollectionResponse, error) {
	if err := validate(req); err != nil {
		return domain.CollectionResponse{}, err
	}
	form := url.Values{}
	form.Set("amount", amount(req.Amount))
	form.Set("msisdn", req.Phone)
	form.Set("reference", req.Reference)
	form.Set("description", req.Description)
	if req.CallbackURL != "" {
		form.Set("webhook_externe", req.CallbackURL)
	}
	return a.client.postForm(ctx, "/airtel/collection/payment", form, req.Reference)
}
