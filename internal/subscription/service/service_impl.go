package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/clock"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	"github.com/smallbiznis/covera/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	Customers  customerdomain.Service
	PromoCodes promodomain.Service `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	customers  customerdomain.Service
	promoCodes promodomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("subscription.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		customers:  p.Customers,
		promoCodes: p.PromoCodes,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Subscription, error) {
	customer, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		switch {
		case errors.Is(err, customerdomain.ErrInvalidID):
			return domain.Subscription{}, fmt.Errorf("%w: %q", domain.ErrInvalidCustomerID, req.CustomerID)
		case errors.Is(err, customerdomain.ErrNotFound):
			return domain.Subscription{}, fmt.Errorf("%w: %s, resolve the customer first", domain.ErrCustomerNotFound, req.CustomerID)
		}
		return domain.Subscription{}, err
	}

	product, err := domain.ParseProductType(req.ProductType)
	if err != nil {
		return domain.Subscription{}, err
	}
	if req.Premium <= 0 {
		return domain.Subscription{}, fmt.Errorf("%w: %d", domain.ErrInvalidPremium, req.Premium)
	}

	var promoCode *string
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		if s.promoCodes == nil {
			return domain.Subscription{}, fmt.Errorf("%w: promo codes unavailable", domain.ErrInvalidPromoCode)
		}
		promo, err := s.promoCodes.Validate(ctx, code)
		if err != nil {
			return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrInvalidPromoCode, err)
		}
		promoCode = &promo.Code
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = domain.SourceChatbot
	}

	now := s.clock.Now()
	sub := domain.Subscription{
		ID:          s.genID.Generate(),
		CustomerID:  customer.ID,
		ProductType: product,
		Status:      domain.StatusInProgress,
		Premium:     req.Premium,
		Coverage:    strings.TrimSpace(req.Coverage),
		PromoCode:   promoCode,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &sub); err != nil {
		return domain.Subscription{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("product", string(product)),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Subscription, error) {
	subID, err := parseID(id)
	if err != nil {
		return domain.Subscription{}, err
	}
	sub, err := s.repo.FindByID(ctx, s.db, subID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if sub == nil {
		return domain.Subscription{}, fmt.Errorf("%w: %s, create the subscription first", domain.ErrSubscriptionNotFound, subID)
	}
	return *sub, nil
}

func (s *Service) SaveDetail(ctx context.Context, subscriptionID string, detail domain.Detail) error {
	if detail == nil {
		return fmt.Errorf("%w: no detail given", domain.ErrDetailMissing)
	}
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.ProductType != detail.Product() {
		return fmt.Errorf("%w: subscription is %s, detail is %s", domain.ErrProductMismatch, sub.ProductType, detail.Product())
	}

	domain.Attach(detail, s.genID.Generate(), sub.ID, s.clock.Now())
	inserted, err := s.repo.InsertDetail(ctx, s.db, detail)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%w: subscription %s", domain.ErrDetailExists, sub.ID)
	}
	s.log.Info("subscription detail saved", zap.String("subscription_id", sub.ID.String()), zap.String("product", string(sub.ProductType)))
	return nil
}

func (s *Service) RequireSettleable(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if sub.Status.Terminal() {
		return domain.Subscription{}, fmt.Errorf("%w: subscription %s is %s", domain.ErrNotSettleable, sub.ID, sub.Status)
	}
	ok, err := s.repo.HasDetail(ctx, s.db, sub.ID, sub.ProductType)
	if err != nil {
		return domain.Subscription{}, err
	}
	if !ok {
		return domain.Subscription{}, fmt.Errorf("%w: save the %s details of subscription %s before payment", domain.ErrDetailMissing, sub.ProductType, sub.ID)
	}
	return sub, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, next domain.Status) (bool, error) {
	return s.UpdateStatusTx(ctx, s.db, id, next)
}

func (s *Service) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, next domain.Status) (bool, error) {
	if _, err := domain.ParseStatus(string(next)); err != nil {
		return false, err
	}
	sub, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, id)
	}
	if sub.Status == next {
		return false, nil
	}
	if !sub.Status.CanTransition(next) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sub.Status, next)
	}

	changed, err := s.repo.UpdateStatus(ctx, tx, id, domain.PredecessorsOf(next), next, s.clock.Now())
	if err != nil {
		return false, err
	}
	if changed {
		s.log.Info("subscription status updated",
			zap.String("subscription_id", id.String()),
			zap.String("from", string(sub.Status)),
			zap.String("to", string(next)),
		)
	}
	return changed, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidSubscriptionID, raw)
	}
	return id, nil
}
