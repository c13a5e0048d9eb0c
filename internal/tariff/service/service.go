package service

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/covera/internal/cache"
	"github.com/smallbiznis/covera/internal/observability/metrics"
	"github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const quoteCacheTTL = 15 * time.Minute

const (
	productAuto     = "auto"
	productTravel   = "voyage"
	productAccident = "accident"
	productHome     = "habitation"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Book    *ratetable.Holder
	Metrics *metrics.Metrics `optional:"true"`
}

// Service resolves premiums against the current rate book. It holds no
// mutable state besides a memo of resolved quotes keyed by book version.
type Service struct {
	log     *zap.Logger
	book    *ratetable.Holder
	metrics *metrics.Metrics

	autoQuotes   *cache.QuoteCache[domain.AutoQuote]
	travelQuotes *cache.QuoteCache[domain.TravelQuote]
}

func New(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("tariff.service"),
		book:         p.Book,
		metrics:      p.Metrics,
		autoQuotes:   cache.NewQuoteCache[domain.AutoQuote](quoteCacheTTL),
		travelQuotes: cache.NewQuoteCache[domain.TravelQuote](quoteCacheTTL),
	}
}

func (s *Service) Version() string {
	return s.book.Get().Version
}

func (s *Service) TravelCatalog() domain.TravelCatalog {
	return s.book.Get().Catalog()
}

func (s *Service) observe(ctx context.Context, product string, err error) {
	if err == nil {
		s.metrics.RecordQuote(ctx, product)
		return
	}
	reason := "invalid_input"
	switch {
	case errors.Is(err, domain.ErrNoMatchingTariff):
		reason = "no_match"
	case errors.Is(err, domain.ErrAmbiguousTariff):
		reason = "ambiguous"
		s.log.Error("ambiguous tariff lookup", zap.String("product", product), zap.Error(err))
	}
	s.metrics.RecordQuoteMiss(ctx, product, reason)
}
