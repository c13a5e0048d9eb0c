package epay

import (
	"context"
	"net/url"

	"github.com/smallbiznis/covera/internal/payment/domain"
)

type MoMo struct {
	client *Client
}

func NewMoMo(client *Client) *MoMo {
	return &MoMo{client: client}
}

func (m *MoMo) Provider() string { return domain.ProviderMoMo }

// RequestToPay triggers the USSD prompt on the payer's MTN handset.
func (m *MoMo) RequestToPay(ctx context.Context, req domain.CollectionRequest) (domain.CollectionResponse, error) {
	if err := validate(req); err != nil {
		return domain.CollectionResponse{}, err
	}
	form := url.Values{}
	form.Set("amount", amount(req.Amount))
	form.Set("phone", req.Phone)
	form.Set("payer_message", req.Description)
	if req.CallbackURL != "" {
		form.Set("webhook_externe", req.CallbackURL)
	}
	return m.client.postForm(ctx, "/momo/collection/request-to-pay", form, req.Reference)
}
