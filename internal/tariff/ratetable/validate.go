package ratetable

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/covera/internal/tariff/domain"
)

var ErrInvalidBook = errors.New("invalid_rate_book")

// Validate rejects books whose lookups could become ambiguous or whose
// catalogs break their ordering rules.
func Validate(b Book) error {
	if b.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidBook)
	}
	if err := validateAuto(b.Auto); err != nil {
		return err
	}
	if err := validateTravel(b.Travel); err != nil {
		return err
	}
	if err := validateAccident(b.Accident); err != nil {
		return err
	}
	return validateHome(b.Home)
}

func validateAuto(a AutoBook) error {
	if len(a.AllCategories) == 0 || len(a.Category4) == 0 {
		return fmt.Errorf("%w: auto tables cannot be empty", ErrInvalidBook)
	}
	for i, row := range a.AllCategories {
		if row.Category < 1 || row.Category > 3 {
			return fmt.Errorf("%w: auto.all_categories[%d] has category %d", ErrInvalidBook, i, row.Category)
		}
		if domain.ModelClass(row.Model).PublicTransport() {
			return fmt.Errorf("%w: auto.all_categories[%d] prices public transport model %s", ErrInvalidBook, i, row.Model)
		}
		if row.Supplementary == nil || row.Supplementary.negative() {
			return fmt.Errorf("%w: auto.all_categories[%d] needs supplementary amounts", ErrInvalidBook, i)
		}
		if err := validateAutoRow("auto.all_categories", i, row); err != nil {
			return err
		}
	}
	for i, row := range a.Category4 {
		if row.Category != 4 || row.Usage != string(domain.UsagePublicPassenger) {
			return fmt.Errorf("%w: auto.category4[%d] must be category 4 public passenger transport", ErrInvalidBook, i)
		}
		if !domain.ModelClass(row.Model).PublicTransport() {
			return fmt.Errorf("%w: auto.category4[%d] prices model %s", ErrInvalidBook, i, row.Model)
		}
		if row.PoolFee == nil || row.PoolFee.negative() || row.DriverIndemnity == nil || *row.DriverIndemnity < 0 {
			return fmt.Errorf("%w: auto.category4[%d] needs pool fee and driver indemnity", ErrInvalidBook, i)
		}
		if err := validateAutoRow("auto.category4", i, row); err != nil {
			return err
		}
	}

	rows := append(append([]AutoRow{}, a.AllCategories...), a.Category4...)
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if rows[i].sameKey(rows[j]) && rows[i].Power.Overlaps(rows[j].Power) && rows[i].Seats.Overlaps(rows[j].Seats) {
				return fmt.Errorf("%w: auto rows %d and %d overlap for %s/%s/%s", ErrInvalidBook, i, j, rows[i].Usage, rows[i].Model, rows[i].Energy)
			}
		}
	}
	return nil
}

func validateAutoRow(section string, i int, row AutoRow) error {
	if row.Usage == "" || row.Model == "" || row.Energy == "" {
		return fmt.Errorf("%w: %s[%d] needs usage, model and energy", ErrInvalidBook, section, i)
	}
	if row.Power.Min > row.Power.Max || row.Seats.Min > row.Seats.Max {
		return fmt.Errorf("%w: %s[%d] has an inverted interval", ErrInvalidBook, section, i)
	}
	policy, stamp, card := row.Fees()
	if row.RC.negative() || row.Taxes.negative() || policy < 0 || stamp < 0 || card < 0 {
		return fmt.Errorf("%w: %s[%d] has a negative amount", ErrInvalidBook, section, i)
	}
	return nil
}

func validateTravel(rows []TravelRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: travel table cannot be empty", ErrInvalidBook)
	}
	for i, row := range rows {
		if row.Category == "" || row.Zone == "" || row.Product == "" {
			return fmt.Errorf("%w: travel[%d] needs category, zone and product", ErrInvalidBook, i)
		}
		if row.Days.After < 0 || row.Days.Through <= row.Days.After {
			return fmt.Errorf("%w: travel[%d] has bucket (%d, %d]", ErrInvalidBook, i, row.Days.After, row.Days.Through)
		}
		if row.Premium <= 0 {
			return fmt.Errorf("%w: travel[%d] premium must be positive", ErrInvalidBook, i)
		}
		for j := 0; j < i; j++ {
			prev := rows[j]
			if prev.Category != row.Category || prev.Zone != row.Zone || prev.Product != row.Product {
				continue
			}
			if row.Days.After < prev.Days.Through && prev.Days.After < row.Days.Through {
				return fmt.Errorf("%w: travel[%d] overlaps travel[%d]", ErrInvalidBook, i, j)
			}
		}
	}
	return nil
}

func validateAccident(a AccidentBook) error {
	if a.Premium <= 0 {
		return fmt.Errorf("%w: accident premium must be positive", ErrInvalidBook)
	}
	if len(a.Statuses) == 0 {
		return fmt.Errorf("%w: accident statuses cannot be empty", ErrInvalidBook)
	}
	seen := map[string]struct{}{}
	for _, s := range a.Statuses {
		if _, dup := seen[s.Code]; dup || s.Code == "" {
			return fmt.Errorf("%w: accident status %q is empty or duplicated", ErrInvalidBook, s.Code)
		}
		seen[s.Code] = struct{}{}
	}
	for _, c := range a.Capitals {
		if c.Amount <= 0 {
			return fmt.Errorf("%w: accident capital %s must be positive", ErrInvalidBook, c.Code)
		}
	}
	return nil
}

func validateHome(h HomeBook) error {
	if len(h.Tiers) == 0 {
		return fmt.Errorf("%w: home tiers cannot be empty", ErrInvalidBook)
	}
	seen := map[string]struct{}{}
	for i, tier := range h.Tiers {
		if _, dup := seen[tier.Code]; dup || tier.Code == "" {
			return fmt.Errorf("%w: home tier %q is empty or duplicated", ErrInvalidBook, tier.Code)
		}
		seen[tier.Code] = struct{}{}
		if tier.AnnualPremium <= 0 || tier.Coverage <= 0 {
			return fmt.Errorf("%w: home tier %s needs premium and coverage", ErrInvalidBook, tier.Code)
		}
		if i == 0 {
			continue
		}
		prev := h.Tiers[i-1]
		if !strictSuperset(tier.Guarantees, prev.Guarantees) {
			return fmt.Errorf("%w: home tier %s must add guarantees to %s", ErrInvalidBook, tier.Code, prev.Code)
		}
		if tier.AnnualPremium <= prev.AnnualPremium {
			return fmt.Errorf("%w: home tier %s must cost more than %s", ErrInvalidBook, tier.Code, prev.Code)
		}
	}
	return nil
}

func strictSuperset(sup, sub []string) bool {
	set := make(map[string]struct{}, len(sup))
	for _, g := range sup {
		set[g] = struct{}{}
	}
	for _, g := range sub {
		if _, ok := set[g]; !ok {
			return false
		}
	}
	return len(set) > len(sub)
}
