package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

// Fold reduces free text to a comparison key: lower case, accents removed,
// punctuation and whitespace collapsed to single dashes.
func Fold(raw string) string {
	return slug.Make(strings.ReplaceAll(strings.TrimSpace(raw), "_", " "))
}

var energySynonyms = map[string]Energy{
	"essence":  EnergyEssence,
	"super":    EnergyEssence,
	"petrol":   EnergyEssence,
	"gasoline": EnergyEssence,
	"diesel":   EnergyDiesel,
	"gasoil":   EnergyDiesel,
	"gazole":   EnergyDiesel,
}

var modelSynonyms = map[string]ModelClass{
	"voiture":           ModelVoiture,
	"berline":           ModelVoiture,
	"citadine":          ModelVoiture,
	"suv":               ModelVoiture,
	"4x4":               ModelVoiture,
	"vehicule-leger":    ModelVoiture,
	"pick-up":           ModelPickUp,
	"pickup":            ModelPickUp,
	"camionnette":       ModelPickUp,
	"camion":            ModelCamion,
	"poids-lourd":       ModelCamion,
	"taxi":              ModelTaxi,
	"picnic":            ModelPicnic,
	"pique-nique":       ModelPicnic,
	"mini-bus":          ModelMiniBus,
	"minibus":           ModelMiniBus,
	"coaster":           ModelCoaster,
	"bus":               ModelCoaster,
	"autocar":           ModelCoaster,
	"transport-en-taxi": ModelTaxi,
}

var usageSynonyms = map[string]Usage{
	"promenade-affaires":               UsagePrivate,
	"promenade":                        UsagePrivate,
	"affaires":                         UsagePrivate,
	"prive":                            UsagePrivate,
	"personnel":                        UsagePrivate,
	"transport-pour-propre-compte":     UsageOwnAccount,
	"propre-compte":                    UsageOwnAccount,
	"transport-public-de-marchandises": UsagePublicGoods,
	"marchandises":                     UsagePublicGoods,
	"transport-public-voyageurs":       UsagePublicPassenger,
	"transport-public":                 UsagePublicPassenger,
	"voyageurs":                        UsagePublicPassenger,
}

func ParseEnergy(raw string) (Energy, error) {
	if e, ok := energySynonyms[Fold(raw)]; ok {
		return e, nil
	}
	return "", Invalid("energy", raw, string(EnergyEssence), string(EnergyDiesel))
}

func ParseModelClass(raw string) (ModelClass, error) {
	if m, ok := modelSynonyms[Fold(raw)]; ok {
		return m, nil
	}
	return "", Invalid("model", raw,
		string(ModelVoiture), string(ModelPickUp), string(ModelCamion),
		string(ModelTaxi), string(ModelPicnic), string(ModelMiniBus), string(ModelCoaster))
}

// ResolveUsage applies the mandatory usage rule: public transport models are
// always TRANSPORT PUBLIC VOYAGEURS, an empty usage included.
func ResolveUsage(model ModelClass, raw string) (Usage, error) {
	if model.PublicTransport() {
		if strings.TrimSpace(raw) == "" {
			return UsagePublicPassenger, nil
		}
		if u, ok := usageSynonyms[Fold(raw)]; ok && u == UsagePublicPassenger {
			return u, nil
		}
		return "", InvalidWith(ErrInconsistentUse, "usage", raw, string(UsagePublicPassenger))
	}
	if u, ok := usageSynonyms[Fold(raw)]; ok {
		return u, nil
	}
	return "", Invalid("usage", raw,
		string(UsagePrivate), string(UsageOwnAccount), string(UsagePublicGoods), string(UsagePublicPassenger))
}

// ParseTariffType accepts an empty value as NORMAL.
func ParseTariffType(raw string) (string, error) {
	switch Fold(raw) {
	case "", "normal":
		return TariffNormal, nil
	}
	return "", Invalid("tariff_type", raw, TariffNormal)
}

var travelCategorySynonyms = map[string]string{
	"particulier": "PARTICULIER",
	"individuel":  "PARTICULIER",
	"touriste":    "PARTICULIER",
	"etudiant":    "ETUDIANT",
	"etudiante":   "ETUDIANT",
	"student":     "ETUDIANT",
	"pelerin":     "PELERIN",
	"pelerine":    "PELERIN",
	"pelerinage":  "PELERIN",
	"hajj":        "PELERIN",
}

// CanonicalTravelCategory maps a spoken category to its catalog name, or
// returns the folded input unchanged when it is not a known synonym.
func CanonicalTravelCategory(raw string) string {
	if c, ok := travelCategorySynonyms[Fold(raw)]; ok {
		return c
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

var statusSynonyms = map[string]string{
	"commercant":              "commercant",
	"commercante":             "commercant",
	"vendeur":                 "commercant",
	"vendeuse":                "commercant",
	"travailleur-independant": "travailleur_independant",
	"independant":             "travailleur_independant",
	"independante":            "travailleur_independant",
	"artisan":                 "travailleur_independant",
	"freelance":               "travailleur_independant",
	"entrepreneur":            "entrepreneur",
	"entrepreneuse":           "entrepreneur",
	"chef-d-entreprise":       "entrepreneur",
	"dirigeant":               "entrepreneur",
}

// CanonicalStatusCode maps a professional status to its catalog code.
func CanonicalStatusCode(raw string) string {
	if c, ok := statusSynonyms[Fold(raw)]; ok {
		return c
	}
	return strings.ReplaceAll(Fold(raw), "-", "_")
}

// CanonicalTierCode lowers, trims and folds accents so "Équilibre" matches
// "equilibre".
func CanonicalTierCode(raw string) string {
	code := Fold(raw)
	switch code {
	case "equilibree":
		return "equilibre"
	case "formule-standard", "formule-equilibre", "formule-confort", "formule-premium":
		return strings.TrimPrefix(code, "formule-")
	}
	return code
}

// ParseAutoRequest normalizes conversational vehicle attributes into a
// typed request, applying the mandatory usage rule.
func ParseAutoRequest(power, seats int, energy, model, usage, tariffType string) (AutoRequest, error) {
	e, err := ParseEnergy(energy)
	if err != nil {
		return AutoRequest{}, err
	}
	m, err := ParseModelClass(model)
	if err != nil {
		return AutoRequest{}, err
	}
	u, err := ResolveUsage(m, usage)
	if err != nil {
		return AutoRequest{}, err
	}
	tt, err := ParseTariffType(tariffType)
	if err != nil {
		return AutoRequest{}, err
	}
	return AutoRequest{Power: power, Seats: seats, Energy: e, Model: m, Usage: u, TariffType: tt}, nil
}
