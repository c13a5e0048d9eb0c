package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
)

func (s *Service) QuoteTravel(ctx context.Context, req domain.TravelRequest) (quote domain.TravelQuote, err error) {
	defer func() { s.observe(ctx, productTravel, err) }()

	book := s.book.Get()
	category, zone, product, err := resolveTravelPath(book.Catalog(), req)
	if err != nil {
		return domain.TravelQuote{}, err
	}
	if req.Days <= 0 {
		return domain.TravelQuote{}, domain.Invalid("days", strconv.Itoa(req.Days))
	}

	key := fmt.Sprintf("%s|%s|%s|%d", category, zone, product, req.Days)
	if cached, ok := s.travelQuotes.Get(book.Version, productTravel, key); ok {
		return cached, nil
	}

	var matches []ratetable.TravelRow
	for _, row := range book.Travel {
		if row.Category == category && row.Zone == zone && row.Product == product && row.Days.Contains(req.Days) {
			matches = append(matches, row)
		}
	}
	switch len(matches) {
	case 0:
		return domain.TravelQuote{}, fmt.Errorf("%w: %s / %s / %s for %d days",
			domain.ErrNoMatchingTariff, category, zone, product, req.Days)
	case 1:
	default:
		return domain.TravelQuote{}, fmt.Errorf("%w: %d buckets for %s / %s / %s at %d days",
			domain.ErrAmbiguousTariff, len(matches), category, zone, product, req.Days)
	}

	quote = domain.TravelQuote{
		Category: category,
		Zone:     zone,
		Product:  product,
		Days:     req.Days,
		Bucket:   matches[0].Days,
		Premium:  roundAmount(matches[0].Premium),
	}
	s.travelQuotes.Set(book.Version, productTravel, key, quote)
	return quote, nil
}

// resolveTravelPath checks the request against the catalog tree and returns
// the canonical names, so a product is only accepted under its own zone.
func resolveTravelPath(catalog domain.TravelCatalog, req domain.TravelRequest) (string, string, string, error) {
	wantCategory := domain.CanonicalTravelCategory(req.Category)
	var names []string
	for _, cat := range catalog {
		names = append(names, cat.Name)
		if domain.Fold(cat.Name) != domain.Fold(wantCategory) {
			continue
		}

		var zones []string
		for _, zone := range cat.Zones {
			zones = append(zones, zone.Name)
			if domain.Fold(zone.Name) != domain.Fold(req.Zone) {
				continue
			}
			for _, product := range zone.Products {
				if domain.Fold(product) == domain.Fold(req.Product) {
					return cat.Name, zone.Name, product, nil
				}
			}
			return "", "", "", domain.Invalid("product", req.Product, zone.Products...)
		}
		return "", "", "", domain.Invalid("zone", req.Zone, zones...)
	}
	return "", "", "", domain.Invalid("category", req.Category, names...)
}
