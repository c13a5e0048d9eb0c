package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Step string

const (
	StepStart          Step = "start"
	StepDraft          Step = "draft"
	StepQuoted         Step = "quoted"
	StepSubscribed     Step = "subscribed"
	StepPaymentPending Step = "payment_pending"
	StepCompleted      Step = "completed"
)

type Product string

const (
	ProductAuto     Product = "auto"
	ProductTravel   Product = "voyage"
	ProductAccident Product = "iac"
	ProductHome     Product = "mrh"
)

func (p Product) Valid() bool {
	switch p {
	case ProductAuto, ProductTravel, ProductAccident, ProductHome:
		return true
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteSnapshot is the last quote shown to the client, kept verbatim so a
// later turn can subscribe without re-rating.
type QuoteSnapshot struct {
	Product Product         `json:"product"`
	Premium int64           `json:"premium"`
	Term    string          `json:"term,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	At      time.Time       `json:"at"`
}

type AutoCollected struct {
	FullName     string `json:"fullname,omitempty"`
	Registration string `json:"immatriculation,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Chassis      string `json:"chassis_number,omitempty"`
	Model        string `json:"model,omitempty"`
	Power        int    `json:"power,omitempty"`
	Seats        int    `json:"seat_number,omitempty"`
	Energy       string `json:"fuel_type,omitempty"`
	Usage        string `json:"usage,omitempty"`
	Address      string `json:"address,omitempty"`
	Profession   string `json:"profession,omitempty"`
	DocumentURL  string `json:"document_url,omitempty"`
}

type TravelCollected struct {
	FullName       string `json:"fullname,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Category       string `json:"category,omitempty"`
	Zone           string `json:"zone,omitempty"`
	Product        string `json:"product,omitempty"`
	Destination    string `json:"destination,omitempty"`
	Days           int    `json:"days,omitempty"`
	DepartureDate  string `json:"departure_date,omitempty"`
	DocumentURL    string `json:"document_url,omitempty"`
}

type AccidentCollected struct {
	FullName    string `json:"fullname,omitempty"`
	Status      string `json:"status,omitempty"`
	NIU         string `json:"niu,omitempty"`
	BirthDate   string `json:"birth_date,omitempty"`
	Address     string `json:"address,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type HomeCollected struct {
	FullName     string `json:"fullname,omitempty"`
	Tier         string `json:"tier,omitempty"`
	Address      string `json:"address,omitempty"`
	PropertyType string `json:"property_type,omitempty"`
	Rooms        int    `json:"rooms,omitempty"`
	DocumentURL  string `json:"document_url,omitempty"`
}

// CollectedData holds exactly one product's collected fields, selected by Kind.
type CollectedData struct {
	Kind     Product            `json:"kind"`
	Auto     *AutoCollected     `json:"auto,omitempty"`
	Travel   *TravelCollected   `json:"voyage,omitempty"`
	Accident *AccidentCollected `json:"iac,omitempty"`
	Home     *HomeCollected     `json:"mrh,omitempty"`
}

var ErrInvalidCollectedData = errors.New("invalid_collected_data")

func (c CollectedData) Validate() error {
	set := 0
	for _, present := range []bool{c.Auto != nil, c.Travel != nil, c.Accident != nil, c.Home != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d variants set", ErrInvalidCollectedData, set)
	}
	var ok bool
	switch c.Kind {
	case ProductAuto:
		ok = c.Auto != nil
	case ProductTravel:
		ok = c.Travel != nil
	case ProductAccident:
		ok = c.Accident != nil
	case ProductHome:
		ok = c.Home != nil
	}
	if !ok {
		return fmt.Errorf("%w: kind %q does not match its payload", ErrInvalidCollectedData, c.Kind)
	}
	return nil
}

func CollectedAuto(a AutoCollected) *CollectedData {
	return &CollectedData{Kind: ProductAuto, Auto: &a}
}

func CollectedTravel(t TravelCollected) *CollectedData {
	return &CollectedData{Kind: ProductTravel, Travel: &t}
}

func CollectedAccident(a AccidentCollected) *CollectedData {
	return &CollectedData{Kind: ProductAccident, Accident: &a}
}

func CollectedHome(h HomeCollected) *CollectedData {
	return &CollectedData{Kind: ProductHome, Home: &h}
}

// ConversationState is everything the assistant remembers about one chat.
type ConversationState struct {
	SessionID        string         `json:"session_id"`
	UserPhone        string         `json:"user_phone"`
	CustomerID       snowflake.ID   `json:"customer_id,omitempty"`
	SubscriptionID   snowflake.ID   `json:"subscription_id,omitempty"`
	Step             Step           `json:"step"`
	Product          Product        `json:"product,omitempty"`
	Collected        *CollectedData `json:"collected_data,omitempty"`
	LastQuote        *QuoteSnapshot `json:"last_quote,omitempty"`
	Coverage         string         `json:"coverage,omitempty"`
	PaymentInitiated bool           `json:"payment_initiated"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	PaymentProvider  string         `json:"payment_provider,omitempty"`
	PromoCode        string         `json:"promo_code,omitempty"`
	PromoApplied     bool           `json:"promo_applied"`
	Messages         []Message      `json:"messages"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (c *ConversationState) AppendMessage(role Role, content string, at time.Time) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: at})
}

// TrimHistory keeps the most recent max messages.
func (c *ConversationState) TrimHistory(max int) {
	if max > 0 && len(c.Messages) > max {
		c.Messages = append([]Message(nil), c.Messages[len(c.Messages)-max:]...)
	}
}

// SelectProduct switches the conversation to product. Switching to another
// product drops the data and quote collected for the previous one.
func (c *ConversationState) SelectProduct(p Product) {
	if c.Product == p {
		return
	}
	c.Product = p
	c.Collected = nil
	c.LastQuote = nil
	c.Coverage = ""
	if c.Step == StepStart || c.Step == StepQuoted {
		c.Step = StepDraft
	}
}

func (c *ConversationState) Summary() Summary {
	last := c.Messages
	if len(last) > 5 {
		last = last[len(last)-5:]
	}
	return Summary{
		SessionID:          c.SessionID,
		UserPhone:          c.UserPhone,
		Step:               c.Step,
		Product:            c.Product,
		QuotationGenerated: c.LastQuote != nil,
		PaymentInitiated:   c.PaymentInitiated,
		MessageCount:       len(c.Messages),
		LastMessages:       append([]Message(nil), last...),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type Summary struct {
	SessionID          string    `json:"session_id"`
	UserPhone          string    `json:"user_phone"`
	Step               Step      `json:"step"`
	Product            Product   `json:"product,omitempty"`
	QuotationGenerated bool      `json:"quotation_generated"`
	PaymentInitiated   bool      `json:"payment_initiated"`
	MessageCount       int       `json:"message_count"`
	LastMessages       []Message `json:"last_messages"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
