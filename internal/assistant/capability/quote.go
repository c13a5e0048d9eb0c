package capability

import (
	"context"
	"fmt"

	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
	"google.golang.org/genai"
)

const annualTerm = "12M"

func (t *Toolbox) registerQuotes() {
	t.register("calculate_auto_quotation",
		"Calcule les offres AUTO sur 3, 6 et 12 mois. Les valeurs en langage naturel (taxi, minibus, essence, gasoil) sont acceptées.",
		object([]string{"power", "seat_number"}, map[string]*genai.Schema{
			"power":       integer("Puissance fiscale en CV"),
			"seat_number": integer("Nombre de places"),
			"fuel_type":   str("Carburant: ESSENCE ou DIESEL"),
			"modele":      str("Modèle: VOITURE, PICK-UP, CAMION, TAXI, PICNIC, MINI-BUS, COASTER"),
			"usage":       str("Usage: PROMENADE/AFFAIRES, TRANSPORT POUR PROPRE COMPTE, TRANSPORT PUBLIC DE MARCHANDISES, TRANSPORT PUBLIC VOYAGEURS"),
			"tariff_type": str("Type de tarif, NORMAL par défaut"),
		}),
		quoteAuto)

	t.register("calculate_voyage_quotation",
		"Calcule le tarif VOYAGE pour une catégorie de client, une zone, un produit et une durée en jours.",
		object([]string{"client_type", "zone", "product", "duration_days"}, map[string]*genai.Schema{
			"client_type":   str("PARTICULIER, ETUDIANT ou PELERIN"),
			"zone":          str("Zone de destination"),
			"product":       str("Produit voyage de la zone"),
			"duration_days": integer("Durée du séjour en jours"),
		}),
		quoteTravel)

	t.register("calculate_iac_quotation",
		"Retourne le tarif Individuelle Accident, pour un statut professionnel ou pour tous.",
		object(nil, map[string]*genai.Schema{
			"statut": str("Statut professionnel: commercant, travailleur_independant, entrepreneur"),
		}),
		quoteAccident)

	t.register("calculate_mrh_quotation",
		"Retourne les formules Multirisque Habitation, ou le détail d'une formule.",
		object(nil, map[string]*genai.Schema{
			"forfait": str("Formule: standard, equilibre, confort, premium"),
		}),
		quoteHome)
}

func quoteAuto(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	power, err := a.Int("power")
	if err != nil {
		return nil, err
	}
	seats, err := a.Int("seat_number")
	if err != nil {
		return nil, err
	}
	if power <= 0 || seats <= 0 {
		return nil, fmt.Errorf("%w: power and seat_number must be positive, got %d and %d", ErrInvalidArgument, power, seats)
	}
	energy, ok := a.OptString("fuel_type")
	if !ok {
		energy = string(tariffdomain.EnergyEssence)
	}
	model, ok := a.OptString("modele")
	if !ok {
		model = string(tariffdomain.ModelVoiture)
	}
	usage, _ := a.OptString("usage")
	if usage == "" {
		if m, err := tariffdomain.ParseModelClass(model); err == nil && !m.PublicTransport() {
			usage = string(tariffdomain.UsagePrivate)
		}
	}
	tariffType, _ := a.OptString("tariff_type")

	req, err := tariffdomain.ParseAutoRequest(power, seats, energy, model, usage, tariffType)
	if err != nil {
		return nil, err
	}
	quote, err := t.box.tariffs.QuoteAuto(ctx, req)
	if err != nil {
		return nil, err
	}

	data := t.autoData()
	data.Power = req.Power
	data.Seats = req.Seats
	data.Energy = string(req.Energy)
	data.Usage = string(req.Usage)
	if err := t.quoted(sessiondomain.ProductAuto, quote.TwelveMonths.Total, "", quote); err != nil {
		return nil, err
	}
	return toMap(quote)
}

func quoteTravel(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	category, err := a.String("client_type")
	if err != nil {
		return nil, err
	}
	zone, err := a.String("zone")
	if err != nil {
		return nil, err
	}
	product, err := a.String("product")
	if err != nil {
		return nil, err
	}
	days, err := a.Int("duration_days")
	if err != nil {
		return nil, err
	}

	quote, err := t.box.tariffs.QuoteTravel(ctx, tariffdomain.TravelRequest{
		Category: category,
		Zone:     zone,
		Product:  product,
		Days:     days,
	})
	if err != nil {
		return nil, err
	}

	data := t.travelData()
	data.Category = quote.Category
	data.Zone = quote.Zone
	data.Product = quote.Product
	data.Days = quote.Days
	if err := t.quoted(sessiondomain.ProductTravel, quote.Premium, fmt.Sprintf("%d jours", quote.Days), quote); err != nil {
		return nil, err
	}
	return toMap(quote)
}

func quoteAccident(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	status, _ := a.OptString("statut")
	quote, err := t.box.tariffs.QuoteAccident(ctx, status)
	if err != nil {
		return nil, err
	}
	data := t.accidentData()
	if quote.Status != nil {
		data.Status = quote.Status.Code
	}
	if err := t.quoted(sessiondomain.ProductAccident, quote.Premium, annualTerm, quote); err != nil {
		return nil, err
	}
	return toMap(quote)
}

func quoteHome(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	tier, _ := a.OptString("forfait")
	quote, err := t.box.tariffs.QuoteHome(ctx, tier)
	if err != nil {
		return nil, err
	}
	data := t.homeData()
	// Only a chosen tier is a quote; the overview lists every premium.
	if quote.Tier != nil {
		data.Tier = quote.Tier.Code
		if err := t.quoted(sessiondomain.ProductHome, quote.Tier.AnnualPremium, annualTerm, quote.Tier); err != nil {
			return nil, err
		}
	}
	return toMap(quote)
}
