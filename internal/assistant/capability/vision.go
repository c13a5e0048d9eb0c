package capability

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	"github.com/smallbiznis/covera/internal/vision"
	"google.golang.org/genai"
)

func (t *Toolbox) registerVision() {
	imageParams := func() *genai.Schema {
		return object([]string{"image_url"}, map[string]*genai.Schema{
			"image_url": str("URL de l'image envoyée par le client"),
		})
	}
	t.register("analyze_carte_grise",
		"Extrait les informations d'une photo de carte grise (puissance, places, carburant, immatriculation).",
		imageParams(), analyze(vision.KindCarteGrise))
	t.register("analyze_passport",
		"Extrait les informations d'une photo de passeport.",
		imageParams(), analyze(vision.KindPassport))
	t.register("analyze_cni",
		"Extrait les informations d'une photo de carte nationale d'identité.",
		imageParams(), analyze(vision.KindCNI))
	t.register("analyze_niu",
		"Extrait les informations d'une attestation NIU.",
		imageParams(), analyze(vision.KindNIU))
}

func analyze(kind vision.Kind) handler {
	return func(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
		imageURL, ok := a.OptString("image_url")
		if !ok {
			imageURL = t.MediaURL
		}
		if imageURL == "" {
			return nil, fmt.Errorf("%w: image_url is required, ask the client to send the photo", ErrInvalidArgument)
		}

		out, err := t.box.vision.Extract(ctx, kind, imageURL)
		if err != nil {
			return nil, err
		}
		result := map[string]any{
			"document":   string(kind),
			"recognized": out.Recognized,
			"message":    out.Message,
		}
		if !out.Recognized {
			return result, nil
		}
		fields := make(map[string]any, len(out.Fields))
		for k, v := range out.Fields {
			fields[k] = v
		}
		result["fields"] = fields
		t.collect(kind, out.Fields, imageURL)
		return result, nil
	}
}

// collect merges extracted fields into the data of the current product. An
// identity document sent before any product is chosen is only returned.
func (t *Turn) collect(kind vision.Kind, f map[string]string, imageURL string) {
	product := t.State.Product
	switch {
	case kind == vision.KindCarteGrise:
		d := t.autoData()
		setIfPresent(&d.FullName, f["fullname"])
		setIfPresent(&d.Registration, f["immatriculation"])
		setIfPresent(&d.Brand, f["brand"])
		setIfPresent(&d.Chassis, f["chassis_number"])
		setIfPresent(&d.Model, f["model"])
		setIfPresent(&d.Energy, strings.ToUpper(f["fuel_type"]))
		setIfPresent(&d.Address, f["address"])
		setIfPresent(&d.Profession, f["profession"])
		if n, ok := leadingInt(f["power"]); ok {
			d.Power = n
		}
		if n, ok := leadingInt(f["seat_number"]); ok {
			d.Seats = n
		}
		d.DocumentURL = imageURL

	case kind == vision.KindPassport && (product == "" || product == sessiondomain.ProductTravel):
		d := t.travelData()
		setIfPresent(&d.FullName, f["full_name"])
		setIfPresent(&d.PassportNumber, f["passport_number"])
		setIfPresent(&d.Nationality, f["nationality"])
		setIfPresent(&d.BirthDate, f["date_of_birth"])
		d.DocumentURL = imageURL

	case product == sessiondomain.ProductTravel:
		d := t.travelData()
		setIfEmpty(&d.FullName, f["full_name"])
		setIfEmpty(&d.Nationality, f["nationality"])
		setIfEmpty(&d.BirthDate, f["date_of_birth"])

	case product == sessiondomain.ProductAccident:
		d := t.accidentData()
		setIfPresent(&d.FullName, f["full_name"])
		setIfPresent(&d.BirthDate, f["date_of_birth"])
		setIfPresent(&d.Address, f["address"])
		setIfPresent(&d.NIU, f["niu_number"])
		d.DocumentURL = imageURL

	case product == sessiondomain.ProductHome:
		d := t.homeData()
		setIfPresent(&d.FullName, f["full_name"])
		setIfPresent(&d.Address, f["address"])
		d.DocumentURL = imageURL
	}
}

func leadingInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(raw[:end])
	return n, err == nil && n > 0
}
