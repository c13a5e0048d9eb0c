package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/covera/internal/tariff/domain"
)

func (s *Service) QuoteHome(ctx context.Context, tier string) (quote domain.HomeQuote, err error) {
	defer func() { s.observe(ctx, productHome, err) }()

	rows := s.book.Get().Home.Tiers
	quote.Tiers = make([]domain.HomeTier, 0, len(rows))
	for _, row := range rows {
		quote.Tiers = append(quote.Tiers, domain.HomeTier{
			Code:          row.Code,
			Name:          row.Name,
			AnnualPremium: roundAmount(row.AnnualPremium),
			Coverage:      roundAmount(row.Coverage),
			Description:   row.Description,
			Guarantees:    append([]string(nil), row.Guarantees...),
		})
	}

	if strings.TrimSpace(tier) == "" {
		return quote, nil
	}
	code := domain.CanonicalTierCode(tier)
	allowed := make([]string, 0, len(quote.Tiers))
	for i := range quote.Tiers {
		allowed = append(allowed, quote.Tiers[i].Code)
		if domain.CanonicalTierCode(quote.Tiers[i].Code) == code || domain.CanonicalTierCode(quote.Tiers[i].Name) == code {
			selected := quote.Tiers[i]
			quote.Tier = &selected
			return quote, nil
		}
	}
	return domain.HomeQuote{}, domain.InvalidWith(domain.ErrUnknownTier, "tier", tier, allowed...)
}
