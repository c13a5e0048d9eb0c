package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTTL        = time.Hour
	defaultMaxHistory = 50
	maxSessionIDLen   = 128
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	log        *zap.Logger
	repo       domain.Repository
	clock      clock.Clock
	ttl        time.Duration
	maxHistory int
}

func New(p Params) domain.Service {
	ttl := p.Config.Session.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	maxHistory := p.Config.Session.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Service{
		log:        p.Log.Named("session.service"),
		repo:       p.Repo,
		clock:      p.Clock,
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

func (s *Service) LoadOrCreate(ctx context.Context, sessionID, phone string) (*domain.ConversationState, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if err := validateSessionID(sessionID); err != nil {
		return nil, false, err
	}

	state, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	phone = strings.TrimSpace(phone)
	if state != nil {
		if state.UserPhone == "" && phone != "" {
			state.UserPhone = phone
		}
		return state, false, nil
	}

	now := s.clock.Now()
	state = &domain.ConversationState{
		SessionID: sessionID,
		UserPhone: phone,
		Step:      domain.StepStart,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.log.Debug("session created", zap.String("session_id", sessionID))
	return state, true, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	state, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

// Save persists the whole state, last writer wins, and restarts the TTL.
func (s *Service) Save(ctx context.Context, state *domain.ConversationState) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", domain.ErrInvalidSessionID)
	}
	if err := validateSessionID(state.SessionID); err != nil {
		return err
	}
	if state.Collected != nil {
		if err := state.Collected.Validate(); err != nil {
			return err
		}
	}
	state.TrimHistory(s.maxHistory)
	state.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, state, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.log.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

func (s *Service) Summary(ctx context.Context, sessionID string) (domain.Summary, error) {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return domain.Summary{}, err
	}
	return state.Summary(), nil
}

func validateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxSessionIDLen || strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}
	return nil
}
