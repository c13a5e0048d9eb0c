package capability

import (
	"context"
	"errors"
	"strings"

	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	"google.golang.org/genai"
)

func (t *Toolbox) registerPayments() {
	online := func() *genai.Schema {
		return object(nil, map[string]*genai.Schema{
			"souscription_id": str("Identifiant de la souscription"),
			"amount":          integer("Montant en FCFA, égal à la prime de la souscription"),
			"phone_number":    str("Numéro Mobile Money à débiter, celui de la conversation par défaut"),
		})
	}
	deferred := func() *genai.Schema {
		return object(nil, map[string]*genai.Schema{
			"souscription_id": str("Identifiant de la souscription"),
			"amount":          integer("Montant en FCFA, égal à la prime de la souscription"),
			"customer_name":   str("Nom complet du client"),
			"phone_number":    str("Numéro de téléphone du client"),
		})
	}

	t.register("initiate_momo_payment",
		"Lance un paiement MTN Mobile Money. Le client valide avec son code PIN.",
		online(), initiateOnline(paymentdomain.MethodMTN))
	t.register("initiate_airtel_payment",
		"Lance un paiement Airtel Money. Le client valide avec son code PIN.",
		online(), initiateOnline(paymentdomain.MethodAirtel))
	t.register("initiate_pay_on_delivery",
		"Enregistre un paiement à la livraison et génère la proposition d'assurance.",
		deferred(), initiateDeferred(paymentdomain.MethodDelivery))
	t.register("initiate_pay_on_agency",
		"Enregistre un paiement en agence et génère la proposition d'assurance.",
		deferred(), initiateDeferred(paymentdomain.MethodAgency))

	t.register("validate_promo_code",
		"Vérifie un code promo d'agent et le retient pour la souscription.",
		object([]string{"code"}, map[string]*genai.Schema{
			"code": str("Code promo communiqué par le client"),
		}),
		validatePromoCode)
}

// amount defaults to the subscription's premium.
func (t *Turn) amount(ctx context.Context, a Args, subID string) (int64, error) {
	v, ok, err := a.OptInt64("amount")
	if err != nil || ok {
		return v, err
	}
	sub, err := t.box.subscriptions.Get(ctx, subID)
	if err != nil {
		return 0, err
	}
	return sub.Premium, nil
}

func (t *Turn) paymentStarted(reference, provider string) {
	t.State.PaymentInitiated = true
	t.State.PaymentReference = reference
	t.State.PaymentProvider = provider
	t.State.Step = sessiondomain.StepPaymentPending
}

func initiateOnline(method paymentdomain.Method) handler {
	return func(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
		subID, err := t.subscriptionID(a)
		if err != nil {
			return nil, err
		}
		amount, err := t.amount(ctx, a, subID)
		if err != nil {
			return nil, err
		}
		msisdn, ok := a.OptString("phone_number")
		if !ok {
			msisdn = t.State.UserPhone
		}

		res, err := t.box.payments.InitiateCollection(ctx, paymentdomain.InitiateRequest{
			SubscriptionID: subID,
			Method:         method,
			Amount:         amount,
			Phone:          msisdn,
		})
		if err != nil {
			return nil, err
		}
		t.paymentStarted(res.Reference, res.Provider)
		return map[string]any{
			"reference":             res.Reference,
			"amount":                amount,
			"provider":              method.Label(),
			"phone":                 res.Phone,
			"transaction_reference": res.GatewayReference,
			"message":               res.Message,
		}, nil
	}
}

func initiateDeferred(method paymentdomain.Method) handler {
	return func(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
		subID, err := t.subscriptionID(a)
		if err != nil {
			return nil, err
		}
		amount, err := t.amount(ctx, a, subID)
		if err != nil {
			return nil, err
		}
		msisdn, ok := a.OptString("phone_number")
		if !ok {
			msisdn = t.State.UserPhone
		}

		res, err := t.box.payments.InitiateDeferred(ctx, paymentdomain.InitiateRequest{
			SubscriptionID: subID,
			Method:         method,
			Amount:         amount,
			Phone:          msisdn,
			CustomerName:   optString(a, "customer_name"),
		})
		if errors.Is(err, paymentdomain.ErrProposalNotDelivered) && res.Reference != "" {
			// The transaction exists; the client keeps the reference.
			t.paymentStarted(res.Reference, string(method))
			return map[string]any{
				"reference": res.Reference,
				"message":   "La référence " + res.Reference + " est enregistrée mais la proposition n'a pas pu être générée. Un conseiller vous la transmettra.",
			}, err
		}
		if err != nil {
			return nil, err
		}
		t.paymentStarted(res.Reference, string(method))
		return map[string]any{
			"reference":     res.Reference,
			"amount":        amount,
			"payment_mode":  method.Label(),
			"document_url":  res.DocumentURL,
			"document_kind": res.ProposalOutcome.String(),
			"message":       res.Message,
		}, nil
	}
}

func validatePromoCode(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	code, err := a.String("code")
	if err != nil {
		return nil, err
	}
	promo, err := t.box.promos.Validate(ctx, code)
	if err != nil {
		t.State.PromoApplied = false
		return nil, err
	}
	t.State.PromoCode = strings.ToUpper(promo.Code)
	t.State.PromoApplied = true
	return map[string]any{
		"valid":          true,
		"code":           t.State.PromoCode,
		"agent":          promo.AgentName,
		"type_reduction": string(promo.ReductionType),
		"valeur":         promo.ReductionValue,
		"message":        "Code promo " + t.State.PromoCode + " appliqué.",
	}, nil
}
