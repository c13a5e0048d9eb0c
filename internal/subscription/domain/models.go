// Package domain contains the subscription lifecycle and per-product details.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status tokens are persisted verbatim.
type Status string

const (
	StatusInProgress Status = "en_cours"
	StatusPending    Status = "en_attente"
	StatusValid      Status = "valide"
	StatusCancelled  Status = "annulée"
	StatusExpired    Status = "expirée"
)

func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "en_cours":
		return StatusInProgress, nil
	case "en_attente":
		return StatusPending, nil
	case "valide":
		return StatusValid, nil
	case "annulée", "annulee":
		return StatusCancelled, nil
	case "expirée", "expiree":
		return StatusExpired, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

func (s Status) Terminal() bool {
	return s == StatusValid || s == StatusCancelled || s == StatusExpired
}

// CanTransition reports whether s may move to next. Moving to the current
// status is allowed and is a no-op; terminal statuses never change.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusInProgress, StatusPending, StatusValid, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// PredecessorsOf lists every status that may transition to next.
func PredecessorsOf(next Status) []Status {
	var out []Status
	for _, s := range []Status{StatusInProgress, StatusPending, StatusValid, StatusCancelled, StatusExpired} {
		if s != next && s.CanTransition(next) {
			out = append(out, s)
		}
	}
	return out
}

type ProductType string

const (
	ProductAuto     ProductType = "NSIA AUTO"
	ProductTravel   ProductType = "NSIA VOYAGE"
	ProductAccident ProductType = "NSIA INDIVIDUEL ACCIDENTS"
	ProductHome     ProductType = "NSIA MULTIRISQUE HABITATION"
)

var ProductTypes = []ProductType{ProductAuto, ProductTravel, ProductAccident, ProductHome}

// ParseProductType accepts the persisted tokens and the short names used in
// conversation (auto, voyage, iac, mrh).
func ParseProductType(raw string) (ProductType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ProductAuto), "AUTO":
		return ProductAuto, nil
	case string(ProductTravel), "VOYAGE":
		return ProductTravel, nil
	case string(ProductAccident), "IAC", "ACCIDENT":
		return ProductAccident, nil
	case string(ProductHome), "MRH", "HABITATION":
		return ProductHome, nil
	}
	return "", fmt.Errorf("%w: %q (allowed: %s, %s, %s, %s)", ErrInvalidProductType, raw,
		ProductAuto, ProductTravel, ProductAccident, ProductHome)
}

const SourceChatbot = "chatbot"

type Subscription struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID `gorm:"not null;index" json:"customer_id"`
	ProductType ProductType  `gorm:"type:text;not null" json:"product_type"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	Premium     int64        `gorm:"not null" json:"premium"`
	Coverage    string       `gorm:"column:coverage" json:"coverage,omitempty"`
	PromoCode   *string      `gorm:"column:promo_code" json:"promo_code,omitempty"`
	Source      string       `gorm:"column:source;not null" json:"source"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Detail is implemented by the four product-specific detail records.
type Detail interface {
	Product() ProductType
	TableName() string
	attach(id, subscriptionID snowflake.ID, at time.Time)
}

type AutoDetail struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID      `gorm:"not null;uniqueIndex" json:"subscription_id"`
	FullName       string            `gorm:"column:full_name" json:"fullname"`
	Registration   string            `gorm:"column:registration" json:"immatriculation"`
	Brand          string            `gorm:"column:brand" json:"brand,omitempty"`
	Model          string            `gorm:"column:model" json:"model"`
	Chassis        string            `gorm:"column:chassis_number" json:"chassis_number,omitempty"`
	Power          int               `gorm:"column:power" json:"power"`
	Seats          int               `gorm:"column:seats" json:"seat_number"`
	Energy         string            `gorm:"column:energy" json:"fuel_type"`
	Usage          string            `gorm:"column:usage" json:"usage"`
	Category       int               `gorm:"column:category" json:"category"`
	Quotation      datatypes.JSON    `gorm:"type:jsonb" json:"quotation,omitempty"`
	ExtractedInfos datatypes.JSONMap `gorm:"type:jsonb" json:"extracted_infos,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (AutoDetail) TableName() string    { return "subscription_auto_details" }
func (AutoDetail) Product() ProductType { return ProductAuto }
func (d *AutoDetail) attach(id, sub snowflake.ID, at time.Time) {
	d.ID, d.SubscriptionID, d.CreatedAt = id, sub, at
}

type TravelDetail struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID      `gorm:"not null;uniqueIndex" json:"subscription_id"`
	FullName       string            `gorm:"column:full_name" json:"fullname"`
	PassportNumber string            `gorm:"column:passport_number" json:"passport_number,omitempty"`
	Nationality    string            `gorm:"column:nationality" json:"nationality,omitempty"`
	BirthDate      string            `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Category       string            `gorm:"column:category" json:"categorie"`
	Zone           string            `gorm:"column:zone" json:"zone"`
	Plan           string            `gorm:"column:product" json:"produit"`
	Destination    string            `gorm:"column:destination" json:"destination,omitempty"`
	Days           int               `gorm:"column:days" json:"duree_jours"`
	DepartureDate  string            `gorm:"column:departure_date" json:"date_depart,omitempty"`
	ExtractedInfos datatypes.JSONMap `gorm:"type:jsonb" json:"extracted_infos,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (TravelDetail) TableName() string    { return "subscription_travel_details" }
func (TravelDetail) Product() ProductType { return ProductTravel }
func (d *TravelDetail) attach(id, sub snowflake.ID, at time.Time) {
	d.ID, d.SubscriptionID, d.CreatedAt = id, sub, at
}

type AccidentDetail struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID     snowflake.ID      `gorm:"not null;uniqueIndex" json:"subscription_id"`
	FullName           string            `gorm:"column:full_name" json:"fullname"`
	ProfessionalStatus string            `gorm:"column:professional_status" json:"statut"`
	NIU                string            `gorm:"column:niu" json:"niu,omitempty"`
	BirthDate          string            `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Address            string            `gorm:"column:address" json:"address,omitempty"`
	Beneficiary        string            `gorm:"column:beneficiary" json:"beneficiaire,omitempty"`
	ExtractedInfos     datatypes.JSONMap `gorm:"type:jsonb" json:"extracted_infos,omitempty"`
	CreatedAt          time.Time         `gorm:"not null" json:"created_at"`
}

func (AccidentDetail) TableName() string    { return "subscription_accident_details" }
func (AccidentDetail) Product() ProductType { return ProductAccident }
func (d *AccidentDetail) attach(id, sub snowflake.ID, at time.Time) {
	d.ID, d.SubscriptionID, d.CreatedAt = id, sub, at
}

type HomeDetail struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID      `gorm:"not null;uniqueIndex" json:"subscription_id"`
	FullName       string            `gorm:"column:full_name" json:"fullname,omitempty"`
	Tier           string            `gorm:"column:tier" json:"formule"`
	Address        string            `gorm:"column:address" json:"address"`
	PropertyType   string            `gorm:"column:property_type" json:"type_logement,omitempty"`
	Rooms          int               `gorm:"column:rooms" json:"pieces,omitempty"`
	Coverage       int64             `gorm:"column:coverage" json:"plafond"`
	ExtractedInfos datatypes.JSONMap `gorm:"type:jsonb" json:"extracted_infos,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (HomeDetail) TableName() string    { return "subscription_home_details" }
func (HomeDetail) Product() ProductType { return ProductHome }
func (d *HomeDetail) attach(id, sub snowflake.ID, at time.Time) {
	d.ID, d.SubscriptionID, d.CreatedAt = id, sub, at
}

// Attach stamps the generated id, parent and creation time on d.
func Attach(d Detail, id, subscriptionID snowflake.ID, at time.Time) {
	d.attach(id, subscriptionID, at)
}

// DetailTable returns the detail table for product.
func DetailTable(product ProductType) (string, bool) {
	switch product {
	case ProductAuto:
		return AutoDetail{}.TableName(), true
	case ProductTravel:
		return TravelDetail{}.TableName(), true
	case ProductAccident:
		return AccidentDetail{}.TableName(), true
	case ProductHome:
		return HomeDetail{}.TableName(), true
	}
	return "", false
}
