package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/document/domain"
	"github.com/smallbiznis/covera/internal/document/render"
	obsmetrics "github.com/smallbiznis/covera/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Renderer domain.Renderer
	Storage  domain.Storage
	Clock    clock.Clock
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	renderer domain.Renderer
	storage  domain.Storage
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("document.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		renderer: p.Renderer,
		storage:  p.Storage,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) IssueProposal(ctx context.Context, p domain.Proposal) (domain.Issued, error) {
	p.Paid = false
	return s.issue(ctx, domain.TypeProposal, "proposals", p)
}

func (s *Service) IssueReceipt(ctx context.Context, p domain.Proposal) (domain.Issued, error) {
	p.Paid = true
	return s.issue(ctx, domain.TypeReceipt, "receipts", p)
}

func (s *Service) issue(ctx context.Context, kind domain.Type, folder string, p domain.Proposal) (domain.Issued, error) {
	if err := validateProposal(p); err != nil {
		return domain.Issued{}, err
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = s.clock.Now()
	}

	outcome := s.render(ctx, p)
	name := slug.Make(string(kind)+" "+p.Reference) + outcome.Extension
	key := path.Join(folder, p.SubscriptionID.String(), ulid.Make().String()+"-"+name)

	location, err := s.storage.Upload(ctx, key, outcome.ContentType, outcome.Content)
	if err != nil {
		s.log.Error("document upload failed",
			zap.String("subscription_id", p.SubscriptionID.String()),
			zap.String("reference", p.Reference),
			zap.String("type", string(kind)),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
		}
		return domain.Issued{}, err
	}

	doc := domain.Document{
		ID:             s.genID.Generate(),
		SubscriptionID: p.SubscriptionID,
		URL:            location,
		Type:           kind,
		Name:           name,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &doc); err != nil {
		return domain.Issued{}, err
	}

	s.log.Info("document issued",
		zap.String("subscription_id", p.SubscriptionID.String()),
		zap.String("type", string(kind)),
		zap.String("outcome", outcome.Kind.String()),
	)
	return domain.Issued{Document: doc, Outcome: outcome.Kind}, nil
}

func (s *Service) render(ctx context.Context, p domain.Proposal) domain.RenderOutcome {
	if s.renderer != nil {
		content, err := s.renderer.Render(ctx, p)
		if err == nil && len(content) > 0 {
			return domain.RenderOutcome{
				Kind:        domain.Rendered,
				Content:     content,
				ContentType: "application/pdf",
				Extension:   ".pdf",
			}
		}
		if err == nil {
			err = fmt.Errorf("%w: empty output", domain.ErrRenderFailed)
		}
		s.log.Warn("pdf rendering failed, using text fallback", zap.String("reference", p.Reference), zap.Error(err))
		s.metrics.RecordRenderFallback(ctx, templateName(p))
		return fallback(p, err)
	}
	return fallback(p, fmt.Errorf("%w: no renderer", domain.ErrRenderFailed))
}

func fallback(p domain.Proposal, cause error) domain.RenderOutcome {
	return domain.RenderOutcome{
		Kind:        domain.FallbackRendered,
		Content:     render.Text(p),
		ContentType: "text/plain; charset=utf-8",
		Extension:   ".txt",
		Cause:       cause,
	}
}

func templateName(p domain.Proposal) string {
	if p.Paid {
		return "receipt"
	}
	return "proposal"
}

func validateProposal(p domain.Proposal) error {
	if p.SubscriptionID <= 0 {
		return fmt.Errorf("%w: missing subscription", domain.ErrInvalidDocument)
	}
	if strings.TrimSpace(p.Reference) == "" {
		return fmt.Errorf("%w: missing reference", domain.ErrInvalidDocument)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidDocument, p.Amount)
	}
	return nil
}

func (s *Service) AttachIdentity(ctx context.Context, subscriptionID snowflake.ID, rawURL string) (domain.Document, error) {
	if subscriptionID <= 0 {
		return domain.Document{}, fmt.Errorf("%w: missing subscription", domain.ErrInvalidDocument)
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}

	doc := domain.Document{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		URL:            u.String(),
		Type:           domain.TypeIdentity,
		Name:           path.Base(u.Path),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, subscriptionID snowflake.ID) ([]domain.Document, error) {
	return s.repo.ListBySubscription(ctx, s.db, subscriptionID)
}
