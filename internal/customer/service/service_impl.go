package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/customer/domain"
	"github.com/smallbiznis/covera/internal/phone"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) ResolveOrCreate(ctx context.Context, req domain.ResolveRequest) (domain.ResolveResult, error) {
	canonical, err := phone.Canonical(req.Phone)
	if err != nil {
		return domain.ResolveResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidPhone, req.Phone)
	}
	profile := trimProfile(req.Profile)

	existing, err := s.repo.FindByPhone(ctx, s.db, canonical)
	if err != nil {
		return domain.ResolveResult{}, err
	}
	if existing != nil {
		return s.fill(ctx, *existing, profile)
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:         s.genID.Generate(),
		Phone:      canonical,
		FullName:   profile.FullName,
		Email:      profile.Email,
		Address:    profile.Address,
		Profession: profile.Profession,
		BirthDate:  profile.BirthDate,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &customer)
	if err != nil {
		return domain.ResolveResult{}, err
	}
	if !inserted {
		// lost a race with a concurrent turn for the same phone
		winner, err := s.repo.FindByPhone(ctx, s.db, canonical)
		if err != nil {
			return domain.ResolveResult{}, err
		}
		if winner == nil {
			return domain.ResolveResult{}, errors.New("customer vanished after conflicting insert")
		}
		return s.fill(ctx, *winner, profile)
	}

	s.log.Info("customer created", zap.String("customer_id", customer.ID.String()))
	return domain.ResolveResult{Customer: customer, Existing: false}, nil
}

func (s *Service) fill(ctx context.Context, customer domain.Customer, profile domain.Profile) (domain.ResolveResult, error) {
	missing := profile.MissingFrom(customer)
	if missing.Empty() {
		return domain.ResolveResult{Customer: customer, Existing: true}, nil
	}
	if err := s.repo.FillProfile(ctx, s.db, customer.ID, missing, s.clock.Now()); err != nil {
		return domain.ResolveResult{}, err
	}
	updated, err := s.repo.FindByID(ctx, s.db, customer.ID)
	if err != nil {
		return domain.ResolveResult{}, err
	}
	if updated == nil {
		return domain.ResolveResult{}, domain.ErrNotFound
	}
	return domain.ResolveResult{Customer: *updated, Existing: true}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || customerID <= 0 {
		return domain.Customer{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrNotFound, customerID)
	}
	return *customer, nil
}

func trimProfile(p domain.Profile) domain.Profile {
	return domain.Profile{
		FullName:   strings.TrimSpace(p.FullName),
		Email:      strings.TrimSpace(p.Email),
		Address:    strings.TrimSpace(p.Address),
		Profession: strings.TrimSpace(p.Profession),
		BirthDate:  strings.TrimSpace(p.BirthDate),
	}
}
