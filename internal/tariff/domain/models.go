package domain

import "fmt"

type Energy string

const (
	EnergyEssence Energy = "ESSENCE"
	EnergyDiesel  Energy = "DIESEL"
)

type ModelClass string

const (
	ModelVoiture ModelClass = "VOITURE"
	ModelPickUp  ModelClass = "PICK-UP"
	ModelCamion  ModelClass = "CAMION"
	ModelTaxi    ModelClass = "TAXI"
	ModelPicnic  ModelClass = "PICNIC"
	ModelMiniBus ModelClass = "MINI-BUS"
	ModelCoaster ModelClass = "COASTER"
)

// PublicTransport reports whether the model class only exists under the
// public passenger transport usage and is priced from the category 4 table.
func (m ModelClass) PublicTransport() bool {
	switch m {
	case ModelTaxi, ModelPicnic, ModelMiniBus, ModelCoaster:
		return true
	}
	return false
}

type Usage string

const (
	UsagePrivate         Usage = "PROMENADE/AFFAIRES"
	UsageOwnAccount      Usage = "TRANSPORT POUR PROPRE COMPTE"
	UsagePublicGoods     Usage = "TRANSPORT PUBLIC DE MARCHANDISES"
	UsagePublicPassenger Usage = "TRANSPORT PUBLIC VOYAGEURS"
)

const TariffNormal = "NORMAL"

// Term is a coverage duration offered on every auto quote.
type Term string

const (
	Term3Months  Term = "OFFRE_3_MOIS"
	Term6Months  Term = "OFFRE_6_MOIS"
	Term12Months Term = "OFFRE_12_MOIS"
)

var Terms = []Term{Term3Months, Term6Months, Term12Months}

// Months returns the coverage length in months.
func (t Term) Months() int {
	switch t {
	case Term3Months:
		return 3
	case Term6Months:
		return 6
	case Term12Months:
		return 12
	}
	return 0
}

func ParseTerm(raw string) (Term, error) {
	switch Fold(raw) {
	case "offre-3-mois", "3-mois", "3", "3m":
		return Term3Months, nil
	case "offre-6-mois", "6-mois", "6", "6m":
		return Term6Months, nil
	case "offre-12-mois", "12-mois", "12", "12m", "1-an", "annuel", "annuelle":
		return Term12Months, nil
	}
	return "", invalid("term", raw, []string{string(Term3Months), string(Term6Months), string(Term12Months)}, nil)
}

type AutoRequest struct {
	Power      int
	Seats      int
	Energy     Energy
	Model      ModelClass
	Usage      Usage
	TariffType string
}

// Key identifies a request for memoization.
func (r AutoRequest) Key() string {
	return fmt.Sprintf("%d|%d|%s|%s|%s|%s", r.Power, r.Seats, r.Energy, r.Model, r.Usage, r.TariffType)
}

// AutoOffer is the premium breakdown for one term. Optional components are
// nil when the category does not carry them.
type AutoOffer struct {
	RC               int64  `json:"RC"`
	Supplementary    *int64 `json:"SR_IC,omitempty"`
	DriverIndemnity  *int64 `json:"IND_CHAUF,omitempty"`
	PoolFee          *int64 `json:"GESTION_POOL,omitempty"`
	PolicyFee        int64  `json:"POLICE"`
	Taxes            int64  `json:"TAXES"`
	Stamp            int64  `json:"TIMBRE"`
	RegistrationCard int64  `json:"CARTE_ROSE"`
	Total            int64  `json:"PRIME_TOTALE"`
}

// Clone returns an offer whose optional components no longer alias o's.
func (o AutoOffer) Clone() AutoOffer {
	o.Supplementary = cloneAmount(o.Supplementary)
	o.DriverIndemnity = cloneAmount(o.DriverIndemnity)
	o.PoolFee = cloneAmount(o.PoolFee)
	return o
}

func cloneAmount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Components lists every present component in display order.
func (o AutoOffer) Components() []Component {
	out := []Component{{Code: "RC", Amount: o.RC}}
	if o.Supplementary != nil {
		out = append(out, Component{Code: "SR_IC", Amount: *o.Supplementary})
	}
	if o.DriverIndemnity != nil {
		out = append(out, Component{Code: "IND_CHAUF", Amount: *o.DriverIndemnity})
	}
	if o.PoolFee != nil {
		out = append(out, Component{Code: "GESTION_POOL", Amount: *o.PoolFee})
	}
	return append(out,
		Component{Code: "POLICE", Amount: o.PolicyFee},
		Component{Code: "TAXES", Amount: o.Taxes},
		Component{Code: "TIMBRE", Amount: o.Stamp},
		Component{Code: "CARTE_ROSE", Amount: o.RegistrationCard},
	)
}

type Component struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

type AutoInformation struct {
	Usage      Usage      `json:"USAGE"`
	Model      ModelClass `json:"MODELE"`
	Category   int        `json:"CATEGORIE"`
	TariffType string     `json:"TARIF_TYPE"`
	Energy     Energy     `json:"ENERGIE"`
	Power      int        `json:"PUISSANCE"`
	Seats      int        `json:"PLACES"`
}

type AutoQuote struct {
	ThreeMonths  AutoOffer       `json:"OFFRE_3_MOIS"`
	SixMonths    AutoOffer       `json:"OFFRE_6_MOIS"`
	TwelveMonths AutoOffer       `json:"OFFRE_12_MOIS"`
	Information  AutoInformation `json:"INFORMATIONS"`
}

func (q AutoQuote) Clone() AutoQuote {
	q.ThreeMonths = q.ThreeMonths.Clone()
	q.SixMonths = q.SixMonths.Clone()
	q.TwelveMonths = q.TwelveMonths.Clone()
	return q
}

func (q AutoQuote) Offer(term Term) (AutoOffer, bool) {
	switch term {
	case Term3Months:
		return q.ThreeMonths, true
	case Term6Months:
		return q.SixMonths, true
	case Term12Months:
		return q.TwelveMonths, true
	}
	return AutoOffer{}, false
}

type TravelRequest struct {
	Category string
	Zone     string
	Product  string
	Days     int
}

// DayRange is a duration bucket excluding After and including Through.
type DayRange struct {
	After   int `json:"after"`
	Through int `json:"through"`
}

func (r DayRange) Contains(days int) bool {
	return days > r.After && days <= r.Through
}

type TravelQuote struct {
	Category string   `json:"categorie"`
	Zone     string   `json:"zone"`
	Product  string   `json:"produit"`
	Days     int      `json:"duree_jours"`
	Bucket   DayRange `json:"tranche"`
	Premium  int64    `json:"prime"`
}

// TravelCatalog is the category, zone and product tree a client can pick from.
type TravelCatalog []TravelCategory

type TravelCategory struct {
	Name  string       `json:"categorie"`
	Zones []TravelZone `json:"zones"`
}

type TravelZone struct {
	Name     string   `json:"zone"`
	Products []string `json:"produits"`
}

type ProfessionalStatus struct {
	Code        string `json:"code"`
	Label       string `json:"libelle"`
	Description string `json:"description"`
}

type Capital struct {
	Code    string `json:"code"`
	Label   string `json:"libelle"`
	Amount  int64  `json:"montant"`
	MaxDays int    `json:"duree_max,omitempty"`
}

type AccidentQuote struct {
	Premium    int64                `json:"prime"`
	Period     string               `json:"periode"`
	Status     *ProfessionalStatus  `json:"statut,omitempty"`
	Statuses   []ProfessionalStatus `json:"statuts"`
	Guarantees []string             `json:"garanties"`
	Capitals   []Capital            `json:"capitaux"`
}

type HomeTier struct {
	Code          string   `json:"code"`
	Name          string   `json:"nom"`
	AnnualPremium int64    `json:"prime_annuelle"`
	Coverage      int64    `json:"plafond"`
	Description   string   `json:"description"`
	Guarantees    []string `json:"garanties"`
}

type HomeQuote struct {
	Tier  *HomeTier  `json:"formule,omitempty"`
	Tiers []HomeTier `json:"formules"`
}
