package service

import (
	"context"
	"fmt"
	"math"

	"github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
)

func (s *Service) QuoteAuto(ctx context.Context, req domain.AutoRequest) (quote domain.AutoQuote, err error) {
	defer func() { s.observe(ctx, productAuto, err) }()

	if err := validateAutoRequest(req); err != nil {
		return domain.AutoQuote{}, err
	}

	book := s.book.Get()
	// Cached offers never share their component pointers with callers.
	if cached, ok := s.autoQuotes.Get(book.Version, productAuto, req.Key()); ok {
		return cached.Clone(), nil
	}

	rows := book.Auto.AllCategories
	if req.Model.PublicTransport() {
		rows = book.Auto.Category4
	}

	var matches []ratetable.AutoRow
	for _, row := range rows {
		if row.Usage != string(req.Usage) || row.Model != string(req.Model) ||
			row.Energy != string(req.Energy) || row.TariffType != req.TariffType {
			continue
		}
		if row.Power.Contains(req.Power) && row.Seats.Contains(req.Seats) {
			matches = append(matches, row)
		}
	}
	switch len(matches) {
	case 0:
		return domain.AutoQuote{}, fmt.Errorf("%w: %s %s %s power=%d seats=%d",
			domain.ErrNoMatchingTariff, req.Usage, req.Model, req.Energy, req.Power, req.Seats)
	case 1:
	default:
		return domain.AutoQuote{}, fmt.Errorf("%w: %d rows for %s %s %s power=%d seats=%d",
			domain.ErrAmbiguousTariff, len(matches), req.Usage, req.Model, req.Energy, req.Power, req.Seats)
	}

	row := matches[0]
	quote = domain.AutoQuote{
		ThreeMonths:  buildOffer(row, domain.Term3Months),
		SixMonths:    buildOffer(row, domain.Term6Months),
		TwelveMonths: buildOffer(row, domain.Term12Months),
		Information: domain.AutoInformation{
			Usage:      req.Usage,
			Model:      req.Model,
			Category:   row.Category,
			TariffType: req.TariffType,
			Energy:     req.Energy,
			Power:      req.Power,
			Seats:      req.Seats,
		},
	}
	s.autoQuotes.Set(book.Version, productAuto, req.Key(), quote.Clone())
	return quote, nil
}

func validateAutoRequest(req domain.AutoRequest) error {
	if req.Power <= 0 {
		return domain.Invalid("power", fmt.Sprint(req.Power))
	}
	if req.Seats <= 0 {
		return domain.Invalid("seats", fmt.Sprint(req.Seats))
	}
	switch req.Energy {
	case domain.EnergyEssence, domain.EnergyDiesel:
	default:
		return domain.Invalid("energy", string(req.Energy), string(domain.EnergyEssence), string(domain.EnergyDiesel))
	}
	if _, err := domain.ParseModelClass(string(req.Model)); err != nil {
		return err
	}
	if _, err := domain.ResolveUsage(req.Model, string(req.Usage)); err != nil {
		return err
	}
	if req.TariffType != domain.TariffNormal {
		return domain.Invalid("tariff_type", req.TariffType, domain.TariffNormal)
	}
	return nil
}

// buildOffer rounds each component half away from zero, then sums the
// rounded components, so the total always equals the displayed breakdown.
func buildOffer(row ratetable.AutoRow, term domain.Term) domain.AutoOffer {
	policy, stamp, card := row.Fees()
	offer := domain.AutoOffer{
		RC:               roundAmount(row.RC.For(term)),
		PolicyFee:        roundAmount(policy),
		Taxes:            roundAmount(row.Taxes.For(term)),
		Stamp:            roundAmount(stamp),
		RegistrationCard: roundAmount(card),
	}
	if row.Supplementary != nil {
		offer.Supplementary = amountPtr(roundAmount(row.Supplementary.For(term)))
	}
	if row.DriverIndemnity != nil {
		offer.DriverIndemnity = amountPtr(roundAmount(*row.DriverIndemnity))
	}
	if row.PoolFee != nil {
		offer.PoolFee = amountPtr(roundAmount(row.PoolFee.For(term)))
	}
	for _, c := range offer.Components() {
		offer.Total += c.Amount
	}
	return offer
}

func roundAmount(v float64) int64 {
	return int64(math.Round(v))
}

func amountPtr(v int64) *int64 {
	return &v
}
