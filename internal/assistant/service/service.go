package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/covera/internal/assistant/capability"
	"github.com/smallbiznis/covera/internal/assistant/dialogue"
	"github.com/smallbiznis/covera/internal/assistant/domain"
	"github.com/smallbiznis/covera/internal/clock"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	"github.com/smallbiznis/covera/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/smallbiznis/covera/internal/ratelimit"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	replyFailure     = "Désolée, j'ai rencontré une erreur. Pouvez-vous reformuler votre demande ?"
	replyRateLimited = "Vous envoyez beaucoup de messages. Merci de patienter quelques secondes avant de réessayer."
	replyBusy        = "Je traite encore votre message précédent. Merci de patienter un instant."
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Sessions      sessiondomain.Service
	Dialogue      dialogue.Dialogue
	Toolbox       *capability.Toolbox
	Payments      paymentdomain.Service
	Subscriptions subscriptiondomain.Service
	Customers     customerdomain.Service
	Documents     documentdomain.Service
	Limiter       *ratelimit.ChatLimiter `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	clock         clock.Clock
	sessions      sessiondomain.Service
	dialogue      dialogue.Dialogue
	toolbox       *capability.Toolbox
	payments      paymentdomain.Service
	subscriptions subscriptiondomain.Service
	customers     customerdomain.Service
	documents     documentdomain.Service
	limiter       *ratelimit.ChatLimiter
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("assistant.service"),
		clock:         p.Clock,
		sessions:      p.Sessions,
		dialogue:      p.Dialogue,
		toolbox:       p.Toolbox,
		payments:      p.Payments,
		subscriptions: p.Subscriptions,
		customers:     p.Customers,
		documents:     p.Documents,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}
}

func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Message == "" && req.MediaURL == "" {
		return domain.ChatReply{}, domain.ErrEmptyMessage
	}

	if ok, retry := s.limiter.AllowPhone(ctx, req.Phone); !ok {
		s.log.Info("chat throttled", zap.Duration("retry_after", retry))
		return domain.ChatReply{Reply: replyRateLimited, SessionID: req.SessionID}, domain.ErrRateLimited
	}

	state, created, err := s.sessions.LoadOrCreate(ctx, req.SessionID, req.Phone)
	if err != nil {
		return domain.ChatReply{}, err
	}
	release, err := s.limiter.LockSession(ctx, state.SessionID)
	if err != nil {
		if errors.Is(err, ratelimit.ErrSessionBusy) {
			return domain.ChatReply{Reply: replyBusy, SessionID: state.SessionID}, domain.ErrSessionBusy
		}
		s.log.Error("turn lock unavailable", zap.String("session_id", state.SessionID), zap.Error(err))
		return domain.ChatReply{Reply: replyFailure, SessionID: state.SessionID}, domain.ErrSessionBusy
	}
	defer release()

	// Reload under the lock: a concurrent turn may have saved since.
	if !created {
		if state, err = s.sessions.Get(ctx, state.SessionID); err != nil {
			return domain.ChatReply{}, err
		}
		if state.UserPhone == "" {
			state.UserPhone = req.Phone
		}
	}

	s.confirmPayment(ctx, state)

	now := s.clock.Now()
	state.AppendMessage(sessiondomain.RoleUser, userMessage(req, state.UserPhone), now)

	turn := s.toolbox.Bind(state, req.MediaURL)
	reply, err := s.dialogue.Respond(ctx, instructions, state.Messages, turn)
	failed := err != nil
	if failed {
		s.log.Error("dialogue failed",
			zap.String("session_id", state.SessionID),
			zap.String("step", string(state.Step)),
			zap.Error(err),
		)
		reply = replyFailure
	} else {
		state.AppendMessage(sessiondomain.RoleAssistant, reply, s.clock.Now())
	}

	// Capability side effects are already persisted, so the state is saved
	// even when the model failed to answer.
	if err := s.sessions.Save(ctx, state); err != nil {
		s.log.Error("session not saved", zap.String("session_id", state.SessionID), zap.Error(err))
		return domain.ChatReply{Reply: replyFailure, SessionID: state.SessionID}, err
	}
	s.metrics.RecordSessionTurn(ctx, string(state.Step))

	return domain.ChatReply{
		Reply:     reply,
		SessionID: state.SessionID,
		Metadata: map[string]any{
			"new_session":       created,
			"step":              string(state.Step),
			"product":           string(state.Product),
			"payment_initiated": state.PaymentInitiated,
			"degraded":          failed,
		},
	}, nil
}

// confirmPayment completes the session when the gateway confirmed its
// payment, issues the receipt and tells the model through a system note.
func (s *Service) confirmPayment(ctx context.Context, state *sessiondomain.ConversationState) {
	if state.PaymentReference == "" || state.Step == sessiondomain.StepCompleted {
		return
	}
	confirmed, err := s.payments.IsConfirmed(ctx, state.PaymentReference)
	if err != nil {
		s.log.Warn("payment confirmation lookup failed",
			zap.String("reference", state.PaymentReference),
			zap.Error(err),
		)
		return
	}
	if !confirmed {
		return
	}

	state.Step = sessiondomain.StepCompleted
	note := fmt.Sprintf("Le paiement de la référence %s est confirmé. Remercie le client et confirme que sa souscription est validée.", state.PaymentReference)
	if url, err := s.issueReceipt(ctx, state); err != nil {
		s.log.Warn("receipt not issued", zap.String("reference", state.PaymentReference), zap.Error(err))
	} else {
		note += " Reçu de paiement: " + url
	}
	state.AppendMessage(sessiondomain.RoleSystem, note, s.clock.Now())
	s.log.Info("payment confirmed for session",
		zap.String("session_id", state.SessionID),
		zap.String("reference", state.PaymentReference),
	)
}

func (s *Service) issueReceipt(ctx context.Context, state *sessiondomain.ConversationState) (string, error) {
	tx, err := s.payments.FindTransaction(ctx, state.PaymentReference)
	if err != nil {
		return "", err
	}
	sub, err := s.subscriptions.Get(ctx, tx.SubscriptionID.String())
	if err != nil {
		return "", err
	}
	name := ""
	if customer, err := s.customers.GetByID(ctx, sub.CustomerID.String()); err == nil {
		name = customer.FullName
	}
	promo := ""
	if sub.PromoCode != nil {
		promo = *sub.PromoCode
	}
	issued, err := s.documents.IssueReceipt(ctx, documentdomain.Proposal{
		SubscriptionID: sub.ID,
		CustomerName:   name,
		Phone:          tx.Phone,
		Product:        string(sub.ProductType),
		Amount:         tx.Amount,
		Reference:      tx.Reference,
		Coverage:       sub.Coverage,
		PromoCode:      promo,
		Lines:          []documentdomain.Line{{Label: "Prime TTC", Amount: tx.Amount}},
		IssuedAt:       s.clock.Now(),
		Paid:           true,
	})
	if err != nil {
		return "", err
	}
	return issued.Document.URL, nil
}

// userMessage prefixes the client's phone and, for an image, the instruction
// to analyze it right away.
func userMessage(req domain.ChatRequest, phone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[TÉLÉPHONE CLIENT: %s]\n", phone)
	if req.MediaURL == "" {
		b.WriteString(req.Message)
		return b.String()
	}
	if req.Message != "" {
		fmt.Fprintf(&b, "Message du client: %s\n", req.Message)
	}
	fmt.Fprintf(&b, "Image envoyée: %s\n", req.MediaURL)
	b.WriteString("Analyse cette image immédiatement avec l'outil adapté (analyze_carte_grise, analyze_passport, analyze_cni ou analyze_niu). Ne redemande pas l'image.")
	if req.MessageType != "" && req.MessageType != "image" && req.MessageType != "text" {
		fmt.Fprintf(&b, "\nType de message: %s", req.MessageType)
	}
	return b.String()
}
