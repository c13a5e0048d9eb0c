package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	"github.com/smallbiznis/covera/internal/document/render"
	obsmetrics "github.com/smallbiznis/covera/internal/observability/metrics"
	"github.com/smallbiznis/covera/internal/payment/adapters"
	"github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/smallbiznis/covera/internal/phone"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"github.com/smallbiznis/covera/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const confirmedKeyPrefix = "payment_confirmed:"

// ConfirmedKey is the redis key set once a reference is paid.
func ConfirmedKey(reference string) string {
	return confirmedKeyPrefix + reference
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Cfg           config.Config
	Repo          domain.Repository
	Collectors    *adapters.Registry
	Subscriptions subscriptiondomain.Service
	Documents     documentdomain.Service
	Customers     customerdomain.Service `optional:"true"`
	Redis         *redis.Client          `optional:"true"`
	Clock         clock.Clock
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	collectors    *adapters.Registry
	subscriptions subscriptiondomain.Service
	documents     documentdomain.Service
	customers     customerdomain.Service
	redis         redis.UniversalClient
	clock         clock.Clock
	metrics       *obsmetrics.Metrics

	webhookBase  string
	confirmedTTL time.Duration
}

func New(p Params) domain.Service {
	ttl := p.Cfg.Epay.ConfirmationTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		collectors:    p.Collectors,
		subscriptions: p.Subscriptions,
		documents:     p.Documents,
		customers:     p.Customers,
		clock:         p.Clock,
		metrics:       p.Metrics,
		webhookBase:   strings.TrimRight(p.Cfg.Epay.BaseWebhookURL, "/"),
		confirmedTTL:  ttl,
	}
	if p.Redis != nil {
		s.redis = p.Redis
	}
	return s
}

func (s *Service) InitiateCollection(ctx context.Context, req domain.InitiateRequest) (domain.Initiated, error) {
	if !req.Method.Online() {
		return domain.Initiated{}, fmt.Errorf("%w: %q is not a mobile money method", domain.ErrInvalidMethod, req.Method)
	}
	sub, err := s.subscriptions.RequireSettleable(ctx, req.SubscriptionID)
	if err != nil {
		return domain.Initiated{}, err
	}
	if err := checkAmount(sub, req.Amount); err != nil {
		return domain.Initiated{}, err
	}
	msisdn, err := phone.Canonical(req.Phone)
	if err != nil {
		return domain.Initiated{}, fmt.Errorf("%w: %q", domain.ErrInvalidPhone, req.Phone)
	}
	collector, err := s.collectors.Collector(req.Method.Provider())
	if err != nil {
		return domain.Initiated{}, err
	}

	now := s.clock.Now()
	txID := s.genID.Generate()
	reference := domain.NewReference(req.Method, now, sub.ID.String(), txID)
	tx := domain.Transaction{
		ID:             txID,
		SubscriptionID: sub.ID,
		Amount:         req.Amount,
		Reference:      reference,
		Method:         req.Method,
		Status:         subscriptiondomain.StatusPending,
		Phone:          msisdn,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// The row exists before the gateway hears of the reference, so a fast
	// callback always finds it.
	if err := s.insertTransaction(ctx, s.db, &tx); err != nil {
		return domain.Initiated{}, err
	}

	callbackURL := ""
	if s.webhookBase != "" {
		callbackURL = s.webhookBase + "/api/payment/callback/" + collector.Provider()
	}
	resp, err := collector.RequestToPay(ctx, domain.CollectionRequest{
		Amount:      req.Amount,
		Phone:       msisdn,
		Reference:   reference,
		Description: "Assurance " + string(sub.ProductType),
		CallbackURL: callbackURL,
	})
	if err != nil {
		s.log.Error("collection request failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("provider", collector.Provider()),
			zap.String("reference", reference),
			zap.Error(err),
		)
		if uerr := s.repo.UpdateTransactionStatus(ctx, s.db, tx.ID, subscriptiondomain.StatusCancelled, s.clock.Now()); uerr != nil {
			s.log.Warn("failed collection left pending", zap.String("reference", reference), zap.Error(uerr))
		}
		return domain.Initiated{}, err
	}
	if resp.TransactionReference != "" {
		tx.ExternalReference = resp.TransactionReference
		if err := s.repo.SetExternalReference(ctx, s.db, tx.ID, resp.TransactionReference, s.clock.Now()); err != nil {
			s.log.Warn("gateway reference not stored", zap.String("reference", reference), zap.Error(err))
		}
	}
	s.metrics.RecordPaymentInitiated(ctx, string(req.Method))
	s.log.Info("collection initiated",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("provider", collector.Provider()),
		zap.String("reference", reference),
		zap.String("gateway_status", resp.Status),
	)

	message := fmt.Sprintf("Paiement initié.\n\nMontant : %s\nOpérateur : %s\nRéférence : %s\n\nVous allez recevoir une demande de confirmation sur le %s. Composez votre code PIN pour valider le paiement.",
		render.FormatXAF(req.Amount), req.Method.Label(), reference, msisdn)
	return domain.Initiated{
		Transaction:      tx,
		Reference:        reference,
		Provider:         collector.Provider(),
		Phone:            msisdn,
		GatewayReference: resp.TransactionReference,
		Message:          message,
	}, nil
}

func (s *Service) InitiateDeferred(ctx context.Context, req domain.InitiateRequest) (domain.Initiated, error) {
	if req.Method != domain.MethodDelivery && req.Method != domain.MethodAgency {
		return domain.Initiated{}, fmt.Errorf("%w: %q is not a deferred method", domain.ErrInvalidMethod, req.Method)
	}
	sub, err := s.subscriptions.RequireSettleable(ctx, req.SubscriptionID)
	if err != nil {
		return domain.Initiated{}, err
	}
	if err := checkAmount(sub, req.Amount); err != nil {
		return domain.Initiated{}, err
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = s.customerName(ctx, sub.CustomerID)
	}
	if name == "" {
		return domain.Initiated{}, fmt.Errorf("%w: the customer's full name is required", domain.ErrInvalidCustomerName)
	}
	msisdn := ""
	if strings.TrimSpace(req.Phone) != "" {
		if msisdn, err = phone.Canonical(req.Phone); err != nil {
			return domain.Initiated{}, fmt.Errorf("%w: %q", domain.ErrInvalidPhone, req.Phone)
		}
	}

	now := s.clock.Now()
	txID := s.genID.Generate()
	reference := domain.NewReference(req.Method, now, sub.ID.String(), txID)
	tx := domain.Transaction{
		ID:             txID,
		SubscriptionID: sub.ID,
		Amount:         req.Amount,
		Reference:      reference,
		Method:         req.Method,
		Status:         subscriptiondomain.StatusPending,
		Phone:          msisdn,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if _, err := s.subscriptions.UpdateStatusTx(ctx, dbtx, sub.ID, subscriptiondomain.StatusPending); err != nil {
			return err
		}
		return s.insertTransaction(ctx, dbtx, &tx)
	})
	if err != nil {
		return domain.Initiated{}, err
	}
	s.metrics.RecordPaymentInitiated(ctx, string(req.Method))

	issued, err := s.documents.IssueProposal(ctx, documentdomain.Proposal{
		SubscriptionID: sub.ID,
		CustomerName:   name,
		Phone:          msisdn,
		Product:        string(sub.ProductType),
		Amount:         req.Amount,
		Reference:      reference,
		Coverage:       sub.Coverage,
		PromoCode:      stringValue(sub.PromoCode),
		IssuedAt:       now,
	})
	if err != nil {
		s.log.Error("proposal not delivered",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return domain.Initiated{Transaction: tx, Reference: reference},
			fmt.Errorf("%w: reference %s is recorded: %v", domain.ErrProposalNotDelivered, reference, err)
	}

	var message string
	if req.Method == domain.MethodDelivery {
		message = fmt.Sprintf("Votre proposition d'assurance est prête.\n\nMontant : %s\nRéférence : %s\n\nLe règlement se fera à la livraison de vos documents.\nProposition : %s",
			render.FormatXAF(req.Amount), reference, issued.Document.URL)
	} else {
		message = fmt.Sprintf("Votre proposition d'assurance est prête.\n\nMontant : %s\nRéférence : %s\n\nPrésentez cette référence dans l'agence NSIA de votre choix pour régler.\nProposition : %s",
			render.FormatXAF(req.Amount), reference, issued.Document.URL)
	}
	s.log.Info("deferred settlement recorded",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("method", string(req.Method)),
		zap.String("reference", reference),
		zap.String("render", issued.Outcome.String()),
	)
	return domain.Initiated{
		Transaction:     tx,
		Reference:       reference,
		Phone:           msisdn,
		Message:         message,
		DocumentURL:     issued.Document.URL,
		ProposalOutcome: issued.Outcome,
	}, nil
}

// checkAmount accepts only the subscription's premium.
func checkAmount(sub subscriptiondomain.Subscription, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	if amount != sub.Premium {
		return fmt.Errorf("%w: %d requested, the premium of subscription %s is %d", domain.ErrAmountMismatch, amount, sub.ID, sub.Premium)
	}
	return nil
}

func (s *Service) insertTransaction(ctx context.Context, conn *gorm.DB, tx *domain.Transaction) error {
	if err := s.repo.InsertTransaction(ctx, conn, tx); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %s, retry in a moment", domain.ErrDuplicateReference, tx.Reference)
		}
		return err
	}
	return nil
}

func (s *Service) customerName(ctx context.Context, id snowflake.ID) string {
	if s.customers == nil {
		return ""
	}
	customer, err := s.customers.GetByID(ctx, id.String())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(customer.FullName)
}

func (s *Service) Reconcile(ctx context.Context, cb domain.Callback) (domain.ReconcileResult, error) {
	reference := strings.TrimSpace(cb.Reference)
	if reference == "" {
		return domain.ReconcileResult{}, domain.ErrMissingReference
	}
	status := domain.MapExternalStatus(cb.ExternalStatus)
	provider := domain.InferProvider(cb.Provider, cb.Payload)
	result := domain.ReconcileResult{Reference: reference, Status: status, Provider: provider}

	payload := cb.Payload
	if len(payload) == 0 || !json.Valid(payload) {
		payload = []byte("{}")
	}
	externalStatus := strings.TrimSpace(cb.ExternalStatus)
	if externalStatus == "" {
		externalStatus = "unknown"
	}

	received := domain.Notification{
		ID:             s.genID.Generate(),
		Reference:      reference,
		Status:         status,
		ExternalStatus: externalStatus,
		Provider:       provider,
		Payload:        datatypes.JSON(payload),
		ReceivedAt:     s.clock.Now(),
	}
	inserted, err := s.repo.InsertNotification(ctx, s.db, &received)
	if err != nil {
		return result, err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindNotification(ctx, s.db, reference, status)
		if err != nil {
			return result, err
		}
		if stored == nil {
			return result, fmt.Errorf("%w: notification %s/%s vanished", domain.ErrInvalidPayload, reference, status)
		}
		if stored.ProcessedAt != nil {
			result.Replayed = true
			s.log.Info("notification replay ignored", zap.String("reference", reference), zap.String("status", string(status)))
			return result, nil
		}
	}

	applied, err := s.apply(ctx, stored)
	if err != nil {
		return result, err
	}
	result.Applied = applied
	if err := s.repo.MarkNotificationProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return result, err
	}
	s.metrics.RecordReconciliation(ctx, provider, string(status))
	return result, nil
}

// apply moves the transaction to the notified status. Terminal statuses are
// never overwritten. A paid transaction validates its subscription and sets
// the confirmation marker read by the chat fast path.
func (s *Service) apply(ctx context.Context, n *domain.Notification) (bool, error) {
	tx, err := s.repo.FindTransactionByReference(ctx, s.db, n.Reference)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, n.Reference)
	}

	applied := false
	current := tx.Status
	switch {
	case current == n.Status:
	case current.CanTransition(n.Status):
		if err := s.repo.UpdateTransactionStatus(ctx, s.db, tx.ID, n.Status, s.clock.Now()); err != nil {
			return false, err
		}
		current = n.Status
		applied = true
		s.log.Info("transaction status updated",
			zap.String("reference", tx.Reference),
			zap.String("from", string(tx.Status)),
			zap.String("to", string(n.Status)),
		)
	default:
		s.log.Warn("ignoring status downgrade",
			zap.String("reference", tx.Reference),
			zap.String("current", string(tx.Status)),
			zap.String("notified", string(n.Status)),
		)
	}

	if current != subscriptiondomain.StatusValid || n.Status != subscriptiondomain.StatusValid {
		return applied, nil
	}

	if _, err := s.subscriptions.UpdateStatus(ctx, tx.SubscriptionID, subscriptiondomain.StatusValid); err != nil {
		if !errors.Is(err, subscriptiondomain.ErrInvalidTransition) {
			return applied, err
		}
		s.log.Warn("subscription already settled differently",
			zap.String("subscription_id", tx.SubscriptionID.String()),
			zap.Error(err),
		)
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, ConfirmedKey(tx.Reference), n.ExternalStatus, s.confirmedTTL).Err(); err != nil {
			return applied, fmt.Errorf("set confirmation marker: %w", err)
		}
	}
	return applied, nil
}

func (s *Service) ReplayPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.repo.ListUnprocessedNotifications(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for i := range pending {
		n := &pending[i]
		if _, err := s.apply(ctx, n); err != nil {
			s.log.Warn("replay failed", zap.String("reference", n.Reference), zap.Error(err))
			continue
		}
		if err := s.repo.MarkNotificationProcessed(ctx, s.db, n.ID, s.clock.Now()); err != nil {
			return processed, err
		}
		s.metrics.RecordReconciliation(ctx, n.Provider, string(n.Status))
		processed++
	}
	return processed, nil
}

func (s *Service) IsConfirmed(ctx context.Context, reference string) (bool, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" || s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, ConfirmedKey(reference)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) FindTransaction(ctx context.Context, reference string) (domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByReference(ctx, s.db, strings.TrimSpace(reference))
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx == nil {
		return domain.Transaction{}, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, reference)
	}
	return *tx, nil
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
