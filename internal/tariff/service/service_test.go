package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, ratetable.Book) {
	t.Helper()
	book, err := ratetable.Default()
	require.NoError(t, err)
	return newServiceWithBook(book), book
}

func newServiceWithBook(book ratetable.Book) *Service {
	return New(Params{Log: zap.NewNop(), Book: ratetable.NewStaticHolder(book)}).(*Service)
}

func autoRequest(t *testing.T, power, seats int, energy, model, usage string) domain.AutoRequest {
	t.Helper()
	req, err := domain.ParseAutoRequest(power, seats, energy, model, usage, "")
	require.NoError(t, err)
	return req
}

func TestQuoteAutoPrivateCar(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.QuoteAuto(context.Background(), autoRequest(t, 5, 5, "essence", "voiture", "promenade/affaires"))
	require.NoError(t, err)

	three := quote.ThreeMonths
	assert.Equal(t, int64(37982), three.RC)
	require.NotNil(t, three.Supplementary)
	assert.Equal(t, int64(5348), *three.Supplementary)
	assert.Nil(t, three.DriverIndemnity)
	assert.Nil(t, three.PoolFee)
	assert.Equal(t, int64(10000), three.PolicyFee)
	assert.Equal(t, int64(6283), three.Taxes)
	assert.Equal(t, int64(5000), three.Stamp)
	assert.Equal(t, int64(1500), three.RegistrationCard)
	assert.Equal(t, int64(66113), three.Total)

	assert.Equal(t, int64(189064), quote.TwelveMonths.Total)
	assert.Equal(t, 1, quote.Information.Category)
	assert.Equal(t, domain.UsagePrivate, quote.Information.Usage)
}

func TestQuoteAutoTaxiUsesCategoryFour(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.QuoteAuto(context.Background(), autoRequest(t, 8, 5, "ESSENCE", "taxi", ""))
	require.NoError(t, err)

	three := quote.ThreeMonths
	assert.Nil(t, three.Supplementary)
	require.NotNil(t, three.DriverIndemnity)
	require.NotNil(t, three.PoolFee)
	assert.Equal(t, int64(25000), *three.DriverIndemnity)
	assert.Equal(t, int64(10350), *three.PoolFee)
	assert.Equal(t, int64(148664), three.Total)
	assert.Equal(t, 4, quote.Information.Category)
	assert.Equal(t, domain.UsagePublicPassenger, quote.Information.Usage)
}

func TestQuoteAutoTotalsAreSumOfComponentsAndMonotonic(t *testing.T) {
	svc, book := newTestService(t)

	rows := append(append([]ratetable.AutoRow{}, book.Auto.AllCategories...), book.Auto.Category4...)
	for _, row := range rows {
		req := domain.AutoRequest{
			Power:      (row.Power.Min + row.Power.Max) / 2,
			Seats:      row.Seats.Max,
			Energy:     domain.Energy(row.Energy),
			Model:      domain.ModelClass(row.Model),
			Usage:      domain.Usage(row.Usage),
			TariffType: row.TariffType,
		}
		quote, err := svc.QuoteAuto(context.Background(), req)
		require.NoError(t, err, "row %+v", row)

		for _, term := range domain.Terms {
			offer, ok := quote.Offer(term)
			require.True(t, ok)
			var sum int64
			for _, c := range offer.Components() {
				sum += c.Amount
			}
			assert.Equal(t, sum, offer.Total)
		}
		assert.LessOrEqual(t, quote.ThreeMonths.Total, quote.SixMonths.Total)
		assert.LessOrEqual(t, quote.SixMonths.Total, quote.TwelveMonths.Total)
	}
}

func TestQuoteAutoIntervalBoundsAreInclusive(t *testing.T) {
	svc, _ := newTestService(t)

	low, err := svc.QuoteAuto(context.Background(), autoRequest(t, 2, 9, "essence", "voiture", "promenade"))
	require.NoError(t, err)
	high, err := svc.QuoteAuto(context.Background(), autoRequest(t, 3, 1, "essence", "voiture", "promenade"))
	require.NoError(t, err)
	assert.Less(t, low.TwelveMonths.RC, high.TwelveMonths.RC)
}

func TestQuoteAutoOutOfDomain(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.QuoteAuto(context.Background(), autoRequest(t, 41, 5, "diesel", "voiture", "promenade/affaires"))
	assert.ErrorIs(t, err, domain.ErrNoMatchingTariff)

	_, err = svc.QuoteAuto(context.Background(), autoRequest(t, 5, 12, "diesel", "voiture", "promenade/affaires"))
	assert.ErrorIs(t, err, domain.ErrNoMatchingTariff)

	_, err = svc.QuoteAuto(context.Background(), domain.AutoRequest{
		Power: 0, Seats: 5, Energy: domain.EnergyDiesel, Model: domain.ModelVoiture,
		Usage: domain.UsagePrivate, TariffType: domain.TariffNormal,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuoteAutoRejectsInconsistentUsage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.QuoteAuto(context.Background(), domain.AutoRequest{
		Power: 8, Seats: 5, Energy: domain.EnergyEssence, Model: domain.ModelTaxi,
		Usage: domain.UsagePrivate, TariffType: domain.TariffNormal,
	})
	assert.ErrorIs(t, err, domain.ErrInconsistentUse)
}

func TestQuoteAutoAmbiguousRows(t *testing.T) {
	book, err := ratetable.Default()
	require.NoError(t, err)
	dup := book.Auto.AllCategories[0]
	book.Auto.AllCategories = append(book.Auto.AllCategories, dup)
	svc := newServiceWithBook(book)

	_, err = svc.QuoteAuto(context.Background(), domain.AutoRequest{
		Power: dup.Power.Min, Seats: dup.Seats.Min, Energy: domain.Energy(dup.Energy),
		Model: domain.ModelClass(dup.Model), Usage: domain.Usage(dup.Usage), TariffType: dup.TariffType,
	})
	assert.ErrorIs(t, err, domain.ErrAmbiguousTariff)
}

func TestQuoteTravelBucketBoundaries(t *testing.T) {
	svc, _ := newTestService(t)
	req := domain.TravelRequest{Category: "particulier", Zone: "Europe", Product: "schengen exclusif"}

	req.Days = 7
	quote, err := svc.QuoteTravel(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(14500), quote.Premium)
	assert.Equal(t, "SCHENGEN EXCLUSIF", quote.Product)
	assert.Equal(t, domain.DayRange{After: 0, Through: 7}, quote.Bucket)

	req.Days = 8
	quote, err = svc.QuoteTravel(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(21025), quote.Premium)

	req.Days = 366
	_, err = svc.QuoteTravel(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNoMatchingTariff)

	req.Days = 0
	_, err = svc.QuoteTravel(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuoteTravelAccentInsensitivePilgrim(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.QuoteTravel(context.Background(), domain.TravelRequest{
		Category: "pèlerin",
		Zone:     "monde entier (ex. lieux saints schengen)",
		Product:  "pelerinage plus",
		Days:     20,
	})
	require.NoError(t, err)
	assert.Equal(t, "PÈLERINAGE PLUS", quote.Product)
	assert.Equal(t, "PELERIN", quote.Category)
}

func TestQuoteTravelRejectsProductOutsideZone(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.QuoteTravel(context.Background(), domain.TravelRequest{
		Category: "PARTICULIER", Zone: "EUROPE", Product: "PERLE", Days: 10,
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "product", verr.Field)
	assert.ElementsMatch(t, []string{"SCHENGEN EXCLUSIF", "EUROPE ET SCHENGEN"}, verr.Allowed)

	_, err = svc.QuoteTravel(context.Background(), domain.TravelRequest{
		Category: "ETUDIANT", Zone: "EUROPE", Product: "ETUDIANT PREMIUM", Days: 10,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "zone", verr.Field)
}

func TestQuoteAccidentFixedPremium(t *testing.T) {
	svc, _ := newTestService(t)

	for _, status := range []string{"", "commerçant", "Travailleur indépendant", "entrepreneur"} {
		quote, err := svc.QuoteAccident(context.Background(), status)
		require.NoError(t, err, status)
		assert.Equal(t, int64(12500), quote.Premium)
		assert.Len(t, quote.Statuses, 3)
	}

	quote, err := svc.QuoteAccident(context.Background(), "independant")
	require.NoError(t, err)
	require.NotNil(t, quote.Status)
	assert.Equal(t, "travailleur_independant", quote.Status.Code)

	var hospital *domain.Capital
	for i := range quote.Capitals {
		if quote.Capitals[i].Code == "indemnites_hospitalisation" {
			hospital = &quote.Capitals[i]
		}
	}
	require.NotNil(t, hospital)
	assert.Equal(t, 365, hospital.MaxDays)

	_, err = svc.QuoteAccident(context.Background(), "fonctionnaire")
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuoteHomeTiersAreAdditive(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.QuoteHome(context.Background(), "Confort")
	require.NoError(t, err)
	require.NotNil(t, quote.Tier)
	assert.Equal(t, int64(55000000), quote.Tier.Coverage)
	require.Len(t, quote.Tiers, 4)

	equilibre, confort, premium := quote.Tiers[1], quote.Tiers[2], quote.Tiers[3]
	assert.Subset(t, confort.Guarantees, equilibre.Guarantees)
	assert.Subset(t, premium.Guarantees, confort.Guarantees)
	assert.Greater(t, len(confort.Guarantees), len(equilibre.Guarantees))

	quote, err = svc.QuoteHome(context.Background(), "  ÉQUILIBRE ")
	require.NoError(t, err)
	assert.Equal(t, "equilibre", quote.Tier.Code)

	_, err = svc.QuoteHome(context.Background(), "gold")
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestQuoteIsDeterministic(t *testing.T) {
	svc, _ := newTestService(t)
	req := autoRequest(t, 12, 3, "diesel", "camion", "propre compte")

	first, err := svc.QuoteAuto(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.QuoteAuto(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.Information.Category)
}

func TestQuoteAutoCachedOffersAreIndependent(t *testing.T) {
	svc, _ := newTestService(t)
	req := autoRequest(t, 8, 5, "ESSENCE", "taxi", "")

	first, err := svc.QuoteAuto(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first.ThreeMonths.PoolFee)
	*first.ThreeMonths.PoolFee = 1
	*first.TwelveMonths.DriverIndemnity = 1

	second, err := svc.QuoteAuto(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(10350), *second.ThreeMonths.PoolFee)
	assert.Equal(t, int64(25000), *second.TwelveMonths.DriverIndemnity)
	assert.NotSame(t, first.ThreeMonths.PoolFee, second.ThreeMonths.PoolFee)
}
