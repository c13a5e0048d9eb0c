package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/covera/internal/tariff/domain"
)

func (s *Service) QuoteAccident(ctx context.Context, status string) (quote domain.AccidentQuote, err error) {
	defer func() { s.observe(ctx, productAccident, err) }()

	book := s.book.Get().Accident
	quote = domain.AccidentQuote{
		Premium:    roundAmount(book.Premium),
		Period:     book.Period,
		Statuses:   append([]domain.ProfessionalStatus(nil), book.Statuses...),
		Guarantees: append([]string(nil), book.Guarantees...),
	}
	for _, c := range book.Capitals {
		quote.Capitals = append(quote.Capitals, domain.Capital{
			Code:    c.Code,
			Label:   c.Label,
			Amount:  roundAmount(c.Amount),
			MaxDays: c.MaxDays,
		})
	}

	if strings.TrimSpace(status) == "" {
		return quote, nil
	}
	code := domain.CanonicalStatusCode(status)
	allowed := make([]string, 0, len(book.Statuses))
	for i := range quote.Statuses {
		allowed = append(allowed, quote.Statuses[i].Code)
		if quote.Statuses[i].Code == code {
			selected := quote.Statuses[i]
			quote.Status = &selected
			return quote, nil
		}
	}
	return domain.AccidentQuote{}, domain.InvalidWith(domain.ErrUnknownStatus, "status", status, allowed...)
}
