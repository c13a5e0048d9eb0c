package ratetable

import (
	"github.com/smallbiznis/covera/internal/tariff/domain"
)

const (
	defaultPolicyFee        = 10000
	defaultStamp            = 5000
	defaultRegistrationCard = 1500
)

// Book is one immutable version of every rate table.
type Book struct {
	Version  string       `mapstructure:"version"`
	Auto     AutoBook     `mapstructure:"auto"`
	Travel   []TravelRow  `mapstructure:"travel"`
	Accident AccidentBook `mapstructure:"accident"`
	Home     HomeBook     `mapstructure:"home"`
}

// Interval is closed on both ends.
type Interval struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

func (i Interval) Contains(v int) bool {
	return v >= i.Min && v <= i.Max
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Min <= o.Max && o.Min <= i.Max
}

type TermAmounts struct {
	M3  float64 `mapstructure:"m3"`
	M6  float64 `mapstructure:"m6"`
	M12 float64 `mapstructure:"m12"`
}

func (a TermAmounts) For(term domain.Term) float64 {
	switch term {
	case domain.Term3Months:
		return a.M3
	case domain.Term6Months:
		return a.M6
	case domain.Term12Months:
		return a.M12
	}
	return 0
}

func (a TermAmounts) negative() bool {
	return a.M3 < 0 || a.M6 < 0 || a.M12 < 0
}

type AutoBook struct {
	AllCategories []AutoRow `mapstructure:"all_categories"`
	Category4     []AutoRow `mapstructure:"category4"`
}

// AutoRow prices one usage, model, energy and tariff type over a power and
// seat rectangle. Supplementary is set for categories 1 to 3, PoolFee and
// DriverIndemnity for category 4. A fee left out of the row takes its
// default; an explicit zero is kept.
type AutoRow struct {
	Usage            string       `mapstructure:"usage"`
	Model            string       `mapstructure:"model"`
	Energy           string       `mapstructure:"energy"`
	TariffType       string       `mapstructure:"tariff_type"`
	Category         int          `mapstructure:"category"`
	Power            Interval     `mapstructure:"power"`
	Seats            Interval     `mapstructure:"seats"`
	RC               TermAmounts  `mapstructure:"rc"`
	Supplementary    *TermAmounts `mapstructure:"supplementary"`
	PoolFee          *TermAmounts `mapstructure:"pool_fee"`
	DriverIndemnity  *float64     `mapstructure:"driver_indemnity"`
	Taxes            TermAmounts  `mapstructure:"taxes"`
	PolicyFee        *float64     `mapstructure:"policy_fee"`
	Stamp            *float64     `mapstructure:"stamp"`
	RegistrationCard *float64     `mapstructure:"registration_card"`
}

// Fees returns the policy fee, stamp and registration card amounts.
func (r AutoRow) Fees() (policy, stamp, card float64) {
	return feeOr(r.PolicyFee, defaultPolicyFee), feeOr(r.Stamp, defaultStamp), feeOr(r.RegistrationCard, defaultRegistrationCard)
}

func feeOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func feePtr(v float64) *float64 {
	return &v
}

func (r AutoRow) sameKey(o AutoRow) bool {
	return r.Usage == o.Usage && r.Model == o.Model && r.Energy == o.Energy && r.TariffType == o.TariffType
}

type TravelRow struct {
	Category string          `mapstructure:"category"`
	Zone     string          `mapstructure:"zone"`
	Product  string          `mapstructure:"product"`
	Days     domain.DayRange `mapstructure:"days"`
	Premium  float64         `mapstructure:"premium"`
}

type AccidentBook struct {
	Premium    float64                     `mapstructure:"premium"`
	Period     string                      `mapstructure:"period"`
	Statuses   []domain.ProfessionalStatus `mapstructure:"statuses"`
	Guarantees []string                    `mapstructure:"guarantees"`
	Capitals   []CapitalRow                `mapstructure:"capitals"`
}

type CapitalRow struct {
	Code    string  `mapstructure:"code"`
	Label   string  `mapstructure:"label"`
	Amount  float64 `mapstructure:"amount"`
	MaxDays int     `mapstructure:"max_days"`
}

type HomeBook struct {
	Tiers []HomeTierRow `mapstructure:"tiers"`
}

type HomeTierRow struct {
	Code          string   `mapstructure:"code"`
	Name          string   `mapstructure:"name"`
	AnnualPremium float64  `mapstructure:"annual_premium"`
	Coverage      float64  `mapstructure:"coverage"`
	Description   string   `mapstructure:"description"`
	Guarantees    []string `mapstructure:"guarantees"`
}

// Catalog derives the category, zone and product tree from the travel rows,
// preserving first-seen order.
func (b Book) Catalog() domain.TravelCatalog {
	var catalog domain.TravelCatalog
	catIdx := map[string]int{}
	for _, row := range b.Travel {
		ci, ok := catIdx[row.Category]
		if !ok {
			catalog = append(catalog, domain.TravelCategory{Name: row.Category})
			ci = len(catalog) - 1
			catIdx[row.Category] = ci
		}
		cat := &catalog[ci]
		zi := -1
		for i := range cat.Zones {
			if cat.Zones[i].Name == row.Zone {
				zi = i
				break
			}
		}
		if zi < 0 {
			cat.Zones = append(cat.Zones, domain.TravelZone{Name: row.Zone})
			zi = len(cat.Zones) - 1
		}
		zone := &cat.Zones[zi]
		seen := false
		for _, p := range zone.Products {
			if p == row.Product {
				seen = true
				break
			}
		}
		if !seen {
			zone.Products = append(zone.Products, row.Product)
		}
	}
	return catalog
}

func (b *Book) applyDefaults() {
	for _, rows := range [][]AutoRow{b.Auto.AllCategories, b.Auto.Category4} {
		for i := range rows {
			if rows[i].TariffType == "" {
				rows[i].TariffType = domain.TariffNormal
			}
			if rows[i].PolicyFee == nil {
				rows[i].PolicyFee = feePtr(defaultPolicyFee)
			}
			if rows[i].Stamp == nil {
				rows[i].Stamp = feePtr(defaultStamp)
			}
			if rows[i].RegistrationCard == nil {
				rows[i].RegistrationCard = feePtr(defaultRegistrationCard)
			}
		}
	}
	if b.Accident.Period == "" {
		b.Accident.Period = "annuelle"
	}
}
