package vision

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Kind string

const (
	KindCarteGrise Kind = "carte_grise"
	KindPassport   Kind = "passport"
	KindCNI        Kind = "cni"
	KindNIU        Kind = "niu"
)

func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := documents[k]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

type field struct {
	name        string
	description string
}

type document struct {
	label       string
	instruction string
	fields      []field
}

// matchField is the model's verdict on whether the image is the requested document.
const matchField = "is_expected_document"

const notPresent = "N/A"

var documents = map[Kind]document{
	KindCarteGrise: {
		label: "carte grise",
		instruction: "Tu analyses des photos de cartes grises de véhicules. Extrais les informations demandées, " +
			"notamment le nombre de places, la puissance administrative et le modèle. Réponds N/A pour toute information absente.",
		fields: []field{
			{"fullname", "Full name of the cardholder"},
			{"immatriculation", "Registration number of the vehicle"},
			{"power", "Administrative engine power, sometimes written 'Puissance Administrative'"},
			{"seat_number", "Total number of seats"},
			{"fuel_type", "Fuel type of the vehicle"},
			{"brand", "Brand of the vehicle"},
			{"chassis_number", "Chassis number or vehicle identification number"},
			{"phone", "Phone number printed on the document"},
			{"model", "Model of the vehicle"},
			{"address", "Address of the cardholder"},
			{"profession", "Profession of the cardholder"},
		},
	},
	KindPassport: {
		label:       "passeport",
		instruction: "Extrais les informations du passeport. Réponds N/A pour toute information absente.",
		fields: []field{
			{"full_name", "Full name of the holder (surname and given names)"},
			{"passport_number", "Passport number"},
			{"nationality", "Nationality of the holder"},
			{"date_of_birth", "Date of birth"},
			{"place_of_birth", "Place of birth"},
			{"sex", "Gender (M or F)"},
			{"profession", "Profession of the holder"},
			{"issue_date", "Date of issuance"},
			{"expiry_date", "Date of expiry"},
			{"place_of_issue", "Location where the passport was issued"},
			{"country_code", "Three-letter country code"},
			{"type", "Passport type, usually P"},
		},
	},
	KindCNI: {
		label:       "carte nationale d'identité",
		instruction: "Extrais les informations de la carte nationale d'identité. Réponds N/A pour toute information absente.",
		fields: []field{
			{"full_name", "Nom complet du titulaire"},
			{"cni_number", "Numéro de la carte nationale d'identité"},
			{"date_of_birth", "Date de naissance"},
			{"place_of_birth", "Lieu de naissance"},
			{"sex", "Sexe (M ou F)"},
			{"nationality", "Nationalité"},
			{"address", "Adresse du titulaire"},
			{"father_name", "Nom du père"},
			{"mother_name", "Nom de la mère"},
			{"height", "Taille du titulaire"},
			{"profession", "Profession du titulaire"},
			{"issue_date", "Date de délivrance"},
			{"expiry_date", "Date d'expiration"},
			{"issuing_authority", "Autorité de délivrance"},
		},
	},
	KindNIU: {
		label:       "attestation NIU",
		instruction: "Extrais les informations du Numéro d'Identification Unique congolais. Réponds N/A pour toute information absente.",
		fields: []field{
			{"full_name", "Nom complet du titulaire"},
			{"niu_number", "Numéro d'Identification Unique"},
			{"date_of_birth", "Date de naissance"},
			{"place_of_birth", "Lieu de naissance"},
			{"sex", "Sexe (M ou F)"},
			{"nationality", "Nationalité"},
			{"address", "Adresse du titulaire"},
			{"profession", "Profession du titulaire"},
			{"issue_date", "Date de délivrance"},
			{"expiry_date", "Date d'expiration"},
			{"issuing_authority", "Autorité de délivrance"},
		},
	},
}

func responseSchema(doc document) *genai.Schema {
	props := map[string]*genai.Schema{
		matchField: {
			Type:        genai.TypeBoolean,
			Description: fmt.Sprintf("true only if the image is a %s", doc.label),
		},
	}
	required := []string{matchField}
	for _, f := range doc.fields {
		props[f.name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.description + ", if not present return " + notPresent,
		}
		required = append(required, f.name)
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}
