package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
	"go.uber.org/zap"
	"google.golang.org/genai"
	"gorm.io/datatypes"
)

func (t *Toolbox) registerLifecycle() {
	products := []string{
		string(subscriptiondomain.ProductAuto),
		string(subscriptiondomain.ProductTravel),
		string(subscriptiondomain.ProductAccident),
		string(subscriptiondomain.ProductHome),
	}

	t.register("get_or_create_client",
		"Retrouve le client par son numéro de téléphone ou le crée. À appeler avant create_souscription.",
		object(nil, map[string]*genai.Schema{
			"phone_number": str("Numéro de téléphone du client, celui de la conversation par défaut"),
			"fullname":     str("Nom complet"),
			"email":        str("Adresse e-mail"),
			"address":      str("Adresse"),
			"profession":   str("Profession"),
			"birth_date":   str("Date de naissance"),
		}),
		getOrCreateClient)

	t.register("create_souscription",
		"Enregistre la souscription du client pour le devis présenté.",
		object([]string{"product_type", "prime_ttc"}, map[string]*genai.Schema{
			"client_id":         str("Identifiant retourné par get_or_create_client"),
			"product_type":      str("Produit", products...),
			"prime_ttc":         integer("Prime TTC en FCFA, celle du devis"),
			"coverage_duration": str("Durée de couverture: OFFRE_3_MOIS, OFFRE_6_MOIS, OFFRE_12_MOIS pour l'auto"),
			"promo_code":        str("Code promo validé"),
		}),
		createSubscription)

	docParams := map[string]*genai.Schema{
		"souscription_id":      str("Identifiant de la souscription"),
		"document_url":         str("URL du document justificatif"),
		"typeDocument":         str("Type de document: Passeport, CNI ou NIU"),
		"extracted_infos_json": str("Informations extraites du document, en JSON"),
	}
	with := func(extra map[string]*genai.Schema) map[string]*genai.Schema {
		out := make(map[string]*genai.Schema, len(docParams)+len(extra))
		for k, v := range docParams {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	t.register("save_auto_details",
		"Enregistre les informations du véhicule de la souscription AUTO.",
		object([]string{"fullname", "immatriculation"}, with(map[string]*genai.Schema{
			"fullname":        str("Nom complet du propriétaire"),
			"immatriculation": str("Numéro d'immatriculation"),
			"power":           integer("Puissance fiscale en CV"),
			"seat_number":     integer("Nombre de places"),
			"fuel_type":       str("Carburant"),
			"brand":           str("Marque"),
			"model":           str("Modèle du véhicule"),
			"chassis_number":  str("Numéro de châssis"),
			"phone":           str("Téléphone"),
			"address":         str("Adresse"),
			"profession":      str("Profession"),
			"quotation_json":  str("Devis retenu, en JSON"),
		})),
		saveAutoDetails)

	t.register("save_voyage_details",
		"Enregistre les informations du voyageur de la souscription VOYAGE.",
		object([]string{"full_name", "passport_number"}, with(map[string]*genai.Schema{
			"full_name":       str("Nom complet"),
			"passport_number": str("Numéro de passeport"),
			"nationality":     str("Nationalité"),
			"date_of_birth":   str("Date de naissance"),
			"destination":     str("Pays de destination"),
			"departure_date":  str("Date de départ"),
		})),
		saveTravelDetails)

	t.register("save_iac_details",
		"Enregistre les informations de l'assuré de la souscription Individuelle Accident.",
		object([]string{"fullname", "statutPro"}, with(map[string]*genai.Schema{
			"fullname":        str("Nom complet"),
			"statutPro":       str("Statut professionnel"),
			"secteurActivite": str("Secteur d'activité"),
			"lieuTravail":     str("Lieu de travail"),
			"beneficiaire":    str("Bénéficiaire"),
		})),
		saveAccidentDetails)

	t.register("save_mrh_details",
		"Enregistre les informations du logement de la souscription Multirisque Habitation.",
		object([]string{"fullname", "forfaitMrh"}, with(map[string]*genai.Schema{
			"fullname":      str("Nom complet"),
			"forfaitMrh":    str("Formule choisie"),
			"address":       str("Adresse du logement"),
			"property_type": str("Type de logement"),
			"rooms":         integer("Nombre de pièces"),
		})),
		saveHomeDetails)
}

func getOrCreateClient(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	phoneNumber, ok := a.OptString("phone_number")
	if !ok {
		phoneNumber = t.State.UserPhone
	}
	profile := customerdomain.Profile{}
	profile.FullName, _ = a.OptString("fullname")
	profile.Email, _ = a.OptString("email")
	profile.Address, _ = a.OptString("address")
	profile.Profession, _ = a.OptString("profession")
	profile.BirthDate, _ = a.OptString("birth_date")

	res, err := t.box.customers.ResolveOrCreate(ctx, customerdomain.ResolveRequest{Phone: phoneNumber, Profile: profile})
	if err != nil {
		return nil, err
	}
	t.State.CustomerID = res.Customer.ID

	message := "Profil créé avec succès !"
	if res.Existing {
		name := res.Customer.FullName
		if name == "" {
			name = "cher client"
		}
		message = fmt.Sprintf("Bienvenue %s !", name)
	}
	return map[string]any{
		"client_id": res.Customer.ID.String(),
		"fullname":  res.Customer.FullName,
		"existing":  res.Existing,
		"message":   message,
	}, nil
}

func createSubscription(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	customerID, ok := a.OptString("client_id")
	if !ok {
		if t.State.CustomerID == 0 {
			return nil, fmt.Errorf("%w: client_id is required, call get_or_create_client first", ErrInvalidArgument)
		}
		customerID = t.State.CustomerID.String()
	}
	rawProduct, err := a.String("product_type")
	if err != nil {
		return nil, err
	}
	product, err := subscriptiondomain.ParseProductType(rawProduct)
	if err != nil {
		return nil, err
	}
	premium, err := a.Int64("prime_ttc")
	if err != nil {
		return nil, err
	}
	coverage, _ := a.OptString("coverage_duration")
	if coverage, err = t.checkQuote(product, premium, coverage); err != nil {
		return nil, err
	}
	promo, ok := a.OptString("promo_code")
	if !ok && t.State.PromoApplied {
		promo = t.State.PromoCode
	}

	if existing, ok, err := t.openSubscription(ctx, product, premium, coverage); err != nil {
		return nil, err
	} else if ok {
		t.State.Coverage = existing.Coverage
		return subscriptionResult(existing, "La souscription en cours est conservée."), nil
	}

	sub, err := t.box.subscriptions.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID:  customerID,
		ProductType: string(product),
		Premium:     premium,
		Coverage:    coverage,
		PromoCode:   promo,
		Source:      subscriptiondomain.SourceChatbot,
	})
	if err != nil {
		return nil, err
	}
	t.State.CustomerID = sub.CustomerID
	t.State.SubscriptionID = sub.ID
	t.State.Coverage = coverage
	t.State.PaymentInitiated = false
	t.State.PaymentReference = ""
	t.State.PaymentProvider = ""
	t.State.Step = sessiondomain.StepSubscribed
	return subscriptionResult(sub, "Souscription enregistrée avec succès !"), nil
}

// openSubscription enforces one in-progress subscription per session: the
// session's unpaid subscription is reused when its product, premium and
// coverage are unchanged, and cancelled otherwise.
func (t *Turn) openSubscription(ctx context.Context, product subscriptiondomain.ProductType, premium int64, coverage string) (subscriptiondomain.Subscription, bool, error) {
	if t.State.SubscriptionID == 0 || t.State.PaymentInitiated {
		return subscriptiondomain.Subscription{}, false, nil
	}
	current, err := t.box.subscriptions.Get(ctx, t.State.SubscriptionID.String())
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return subscriptiondomain.Subscription{}, false, nil
	}
	if err != nil {
		return subscriptiondomain.Subscription{}, false, err
	}
	if current.Status != subscriptiondomain.StatusInProgress {
		return subscriptiondomain.Subscription{}, false, nil
	}
	if current.ProductType == product && current.Premium == premium && current.Coverage == strings.TrimSpace(coverage) {
		return current, true, nil
	}
	if _, err := t.box.subscriptions.UpdateStatus(ctx, current.ID, subscriptiondomain.StatusCancelled); err != nil {
		return subscriptiondomain.Subscription{}, false, fmt.Errorf("%w: cancel %s: %v", ErrSubscriptionInProgress, current.ID, err)
	}
	t.box.log.Info("abandoned subscription cancelled",
		zap.String("session_id", t.State.SessionID),
		zap.String("subscription_id", current.ID.String()),
		zap.Int64("premium", current.Premium),
		zap.Int64("requested_premium", premium),
	)
	return subscriptiondomain.Subscription{}, false, nil
}

func subscriptionResult(sub subscriptiondomain.Subscription, message string) map[string]any {
	return map[string]any{
		"souscription_id": sub.ID.String(),
		"client_id":       sub.CustomerID.String(),
		"product_type":    string(sub.ProductType),
		"prime_ttc":       sub.Premium,
		"coverage":        sub.Coverage,
		"status":          string(sub.Status),
		"message":         message,
	}
}

// checkQuote requires a premium taken from the last quote of the same
// product and returns the canonical coverage label.
func (t *Turn) checkQuote(product subscriptiondomain.ProductType, premium int64, coverage string) (string, error) {
	q := t.State.LastQuote
	if q == nil || q.Product != sessionProduct(product) {
		return "", fmt.Errorf("%w: calculate a %s quotation before subscribing", ErrQuoteRequired, product)
	}
	if product != subscriptiondomain.ProductAuto {
		if premium != q.Premium {
			return "", fmt.Errorf("%w: %d, the quoted premium is %d", ErrPremiumMismatch, premium, q.Premium)
		}
		if coverage == "" {
			coverage = q.Term
		}
		return coverage, nil
	}

	term, err := tariffdomain.ParseTerm(coverage)
	if err != nil {
		return "", err
	}
	var quote tariffdomain.AutoQuote
	if err := json.Unmarshal(q.Details, &quote); err != nil {
		return "", fmt.Errorf("%w: last auto quotation is unreadable", ErrQuoteRequired)
	}
	offer, _ := quote.Offer(term)
	if premium != offer.Total {
		return "", fmt.Errorf("%w: %d, the %s offer is %d", ErrPremiumMismatch, premium, term, offer.Total)
	}
	return string(term), nil
}

func saveAutoDetails(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	subID, err := t.subscriptionID(a)
	if err != nil {
		return nil, err
	}
	d := t.autoData()
	fullName, err := a.String("fullname")
	if err != nil {
		return nil, err
	}
	registration, err := a.String("immatriculation")
	if err != nil {
		return nil, err
	}
	power, seats := d.Power, d.Seats
	if v, ok, err := a.OptInt64("power"); err != nil {
		return nil, err
	} else if ok {
		power = int(v)
	}
	if v, ok, err := a.OptInt64("seat_number"); err != nil {
		return nil, err
	} else if ok {
		seats = int(v)
	}
	if power <= 0 || seats <= 0 {
		return nil, fmt.Errorf("%w: power and seat_number are required", ErrInvalidArgument)
	}

	detail := &subscriptiondomain.AutoDetail{
		FullName:     fullName,
		Registration: strings.ToUpper(registration),
		Power:        power,
		Seats:        seats,
		Usage:        d.Usage,
		Energy:       d.Energy,
		Brand:        d.Brand,
		Model:        d.Model,
		Chassis:      d.Chassis,
	}
	if v, ok := a.OptString("fuel_type"); ok {
		detail.Energy = strings.ToUpper(v)
	}
	setIfPresent(&detail.Brand, optString(a, "brand"))
	setIfPresent(&detail.Model, optString(a, "model"))
	setIfPresent(&detail.Chassis, optString(a, "chassis_number"))

	quotation, err := a.Object("quotation_json")
	if err != nil {
		return nil, err
	}
	switch {
	case quotation != nil:
		raw, _ := json.Marshal(quotation)
		detail.Quotation = datatypes.JSON(raw)
	case t.State.LastQuote != nil && t.State.LastQuote.Product == sessiondomain.ProductAuto:
		detail.Quotation = datatypes.JSON(t.State.LastQuote.Details)
		var quote tariffdomain.AutoQuote
		if json.Unmarshal(t.State.LastQuote.Details, &quote) == nil {
			detail.Category = quote.Information.Category
		}
	}

	extracted, err := extractedInfos(a, map[string]string{
		"phone":      optString(a, "phone"),
		"address":    firstOf(optString(a, "address"), d.Address),
		"profession": firstOf(optString(a, "profession"), d.Profession),
	})
	if err != nil {
		return nil, err
	}
	detail.ExtractedInfos = extracted

	d.FullName, d.Registration = detail.FullName, detail.Registration
	return t.saveDetail(ctx, subID, detail, firstOf(optString(a, "document_url"), d.DocumentURL), "AUTO")
}

func saveTravelDetails(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	subID, err := t.subscriptionID(a)
	if err != nil {
		return nil, err
	}
	d := t.travelData()
	fullName, err := a.String("full_name")
	if err != nil {
		return nil, err
	}
	passport, err := a.String("passport_number")
	if err != nil {
		return nil, err
	}
	if d.Category == "" || d.Days <= 0 {
		return nil, fmt.Errorf("%w: call calculate_voyage_quotation first", ErrQuoteRequired)
	}

	extracted, err := extractedInfos(a, nil)
	if err != nil {
		return nil, err
	}
	detail := &subscriptiondomain.TravelDetail{
		FullName:       fullName,
		PassportNumber: strings.ToUpper(passport),
		Nationality:    firstOf(optString(a, "nationality"), d.Nationality),
		BirthDate:      firstOf(optString(a, "date_of_birth"), d.BirthDate),
		Category:       d.Category,
		Zone:           d.Zone,
		Plan:           d.Product,
		Destination:    firstOf(optString(a, "destination"), d.Destination),
		Days:           d.Days,
		DepartureDate:  firstOf(optString(a, "departure_date"), d.DepartureDate),
		ExtractedInfos: extracted,
	}
	d.FullName, d.PassportNumber = detail.FullName, detail.PassportNumber
	return t.saveDetail(ctx, subID, detail, firstOf(optString(a, "document_url"), d.DocumentURL), "VOYAGE")
}

func saveAccidentDetails(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	subID, err := t.subscriptionID(a)
	if err != nil {
		return nil, err
	}
	d := t.accidentData()
	fullName, err := a.String("fullname")
	if err != nil {
		return nil, err
	}
	rawStatus, err := a.String("statutPro")
	if err != nil {
		return nil, err
	}
	quote, err := t.box.tariffs.QuoteAccident(ctx, rawStatus)
	if err != nil {
		return nil, err
	}
	if quote.Status == nil {
		return nil, fmt.Errorf("%w: statutPro %q", ErrInvalidArgument, rawStatus)
	}

	extracted, err := extractedInfos(a, map[string]string{
		"secteur_activite": optString(a, "secteurActivite"),
		"lieu_travail":     optString(a, "lieuTravail"),
		"type_document":    optString(a, "typeDocument"),
	})
	if err != nil {
		return nil, err
	}
	detail := &subscriptiondomain.AccidentDetail{
		FullName:           fullName,
		ProfessionalStatus: quote.Status.Code,
		NIU:                d.NIU,
		BirthDate:          d.BirthDate,
		Address:            d.Address,
		Beneficiary:        firstOf(optString(a, "beneficiaire"), d.Beneficiary),
		ExtractedInfos:     extracted,
	}
	d.FullName, d.Status = detail.FullName, detail.ProfessionalStatus
	return t.saveDetail(ctx, subID, detail, firstOf(optString(a, "document_url"), d.DocumentURL), "IAC")
}

func saveHomeDetails(ctx context.Context, t *Turn, a Args) (map[string]any, error) {
	subID, err := t.subscriptionID(a)
	if err != nil {
		return nil, err
	}
	d := t.homeData()
	fullName, err := a.String("fullname")
	if err != nil {
		return nil, err
	}
	rawTier, err := a.String("forfaitMrh")
	if err != nil {
		return nil, err
	}
	quote, err := t.box.tariffs.QuoteHome(ctx, rawTier)
	if err != nil {
		return nil, err
	}
	if quote.Tier == nil {
		return nil, fmt.Errorf("%w: forfaitMrh %q", ErrInvalidArgument, rawTier)
	}
	rooms := d.Rooms
	if v, ok, err := a.OptInt64("rooms"); err != nil {
		return nil, err
	} else if ok {
		rooms = int(v)
	}

	extracted, err := extractedInfos(a, map[string]string{
		"type_document": optString(a, "typeDocument"),
	})
	if err != nil {
		return nil, err
	}
	detail := &subscriptiondomain.HomeDetail{
		FullName:       fullName,
		Tier:           quote.Tier.Code,
		Address:        firstOf(optString(a, "address"), d.Address),
		PropertyType:   firstOf(optString(a, "property_type"), d.PropertyType),
		Rooms:          rooms,
		Coverage:       quote.Tier.Coverage,
		ExtractedInfos: extracted,
	}
	d.FullName, d.Tier, d.Address = detail.FullName, detail.Tier, detail.Address
	return t.saveDetail(ctx, subID, detail, firstOf(optString(a, "document_url"), d.DocumentURL), "MRH")
}

// saveDetail persists the detail and attaches the supporting document. A
// document that cannot be attached does not undo the saved detail.
func (t *Turn) saveDetail(ctx context.Context, subID string, detail subscriptiondomain.Detail, documentURL, label string) (map[string]any, error) {
	if err := t.box.subscriptions.SaveDetail(ctx, subID, detail); err != nil {
		return nil, err
	}
	if t.State.Step != sessiondomain.StepPaymentPending && t.State.Step != sessiondomain.StepCompleted {
		t.State.Step = sessiondomain.StepSubscribed
	}
	result := map[string]any{
		"souscription_id": subID,
		"message":         fmt.Sprintf("Détails %s enregistrés avec succès !", label),
	}
	if documentURL == "" {
		return result, nil
	}
	id, err := parseSubscriptionID(subID)
	if err != nil {
		return nil, err
	}
	doc, err := t.box.documents.AttachIdentity(ctx, id, documentURL)
	if err != nil {
		t.box.log.Warn("identity document not attached",
			zap.String("subscription_id", subID),
			zap.Error(err),
		)
		result["document_attached"] = false
		return result, nil
	}
	result["document_attached"] = true
	result["document_id"] = doc.ID.String()
	return result, nil
}

// extractedInfos merges the extracted_infos_json argument with the given
// named values, skipping empty ones.
func extractedInfos(a Args, named map[string]string) (datatypes.JSONMap, error) {
	obj, err := a.Object("extracted_infos_json")
	if err != nil {
		return nil, err
	}
	out := datatypes.JSONMap{}
	for k, v := range obj {
		out[k] = v
	}
	for k, v := range named {
		if v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func optString(a Args, key string) string {
	v, _ := a.OptString(key)
	return v
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
