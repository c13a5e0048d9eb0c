package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/promocode/domain"
	"github.com/smallbiznis/covera/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("promocode.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.PromoCode, error) {
	code := normalizeCode(req.Code)
	if code == "" || strings.ContainsAny(code, " \t\n") {
		return domain.PromoCode{}, fmt.Errorf("%w: %q", domain.ErrInvalidCode, req.Code)
	}
	switch req.ReductionType {
	case "":
	case domain.ReductionPercentage:
		if req.ReductionValue <= 0 || req.ReductionValue > 100 {
			return domain.PromoCode{}, fmt.Errorf("%w: percentage %v", domain.ErrInvalidReduction, req.ReductionValue)
		}
	case domain.ReductionFixed:
		if req.ReductionValue <= 0 {
			return domain.PromoCode{}, fmt.Errorf("%w: amount %v", domain.ErrInvalidReduction, req.ReductionValue)
		}
	default:
		return domain.PromoCode{}, fmt.Errorf("%w: type %q", domain.ErrInvalidReduction, req.ReductionType)
	}

	promo := domain.PromoCode{
		ID:             s.genID.Generate(),
		Code:           code,
		AgentID:        strings.TrimSpace(req.AgentID),
		AgentName:      strings.TrimSpace(req.AgentName),
		ReductionType:  req.ReductionType,
		ReductionValue: req.ReductionValue,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &promo); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.PromoCode{}, fmt.Errorf("%w: %s already exists", domain.ErrInvalidCode, code)
		}
		return domain.PromoCode{}, err
	}
	return promo, nil
}

func (s *Service) Validate(ctx context.Context, code string) (domain.PromoCode, error) {
	normalized := normalizeCode(code)
	if normalized == "" {
		return domain.PromoCode{}, fmt.Errorf("%w: empty code", domain.ErrInvalidCode)
	}
	promo, err := s.repo.FindByCode(ctx, s.db, normalized)
	if err != nil {
		return domain.PromoCode{}, err
	}
	if promo == nil {
		return domain.PromoCode{}, fmt.Errorf("%w: %s", domain.ErrNotFound, normalized)
	}
	if promo.ExpiredAt(s.clock.Now()) {
		return domain.PromoCode{}, fmt.Errorf("%w: %s", domain.ErrExpired, normalized)
	}
	s.log.Debug("promo code validated", zap.String("code", normalized), zap.String("agent", promo.AgentName))
	return *promo, nil
}
