// Package domain models settlement attempts and gateway notifications.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"gorm.io/datatypes"
)

type Method string

const (
	MethodMTN      Method = "MTN_MOBILE_MONEY"
	MethodAirtel   Method = "AIRTEL_MOBILE_MONEY"
	MethodDelivery Method = "PAY_ON_DELIVERY"
	MethodAgency   Method = "PAY_ON_AGENCY"
)

const (
	ProviderMoMo    = "momo"
	ProviderAirtel  = "airtel"
	ProviderUnknown = "unknown"
)

func (m Method) Valid() bool {
	switch m {
	case MethodMTN, MethodAirtel, MethodDelivery, MethodAgency:
		return true
	}
	return false
}

// Online reports whether the method collects through the mobile money gateway.
func (m Method) Online() bool {
	return m == MethodMTN || m == MethodAirtel
}

func (m Method) Provider() string {
	switch m {
	case MethodMTN:
		return ProviderMoMo
	case MethodAirtel:
		return ProviderAirtel
	}
	return ""
}

// ReferencePrefix is the prefix of generated references for the method.
func (m Method) ReferencePrefix() string {
	switch m {
	case MethodDelivery:
		return "NSIA-LIV"
	case MethodAgency:
		return "NSIA-AGC"
	}
	return "NSIA"
}

func (m Method) Label() string {
	switch m {
	case MethodMTN:
		return "MTN Mobile Money"
	case MethodAirtel:
		return "Airtel Money"
	case MethodDelivery:
		return "Paiement à la livraison"
	case MethodAgency:
		return "Paiement en agence"
	}
	return string(m)
}

// Transaction is one settlement attempt. Its status is updated in place.
type Transaction struct {
	ID                snowflake.ID              `gorm:"primaryKey" json:"id"`
	SubscriptionID    snowflake.ID              `gorm:"not null;index" json:"subscription_id"`
	Amount            int64                     `gorm:"not null" json:"amount"`
	Reference         string                    `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	Method            Method                    `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	Status            subscriptiondomain.Status `gorm:"type:text;not null" json:"status"`
	Phone             string                    `gorm:"type:text" json:"phone,omitempty"`
	ExternalReference string                    `gorm:"type:text" json:"external_reference,omitempty"`
	CreatedAt         time.Time                 `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                 `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// Notification records one gateway callback. The pair (reference, status)
// is unique so replays of the same outcome are detected.
type Notification struct {
	ID             snowflake.ID              `gorm:"primaryKey" json:"id"`
	Reference      string                    `gorm:"type:text;not null;uniqueIndex:ux_payment_notifications_reference_status" json:"reference"`
	Status         subscriptiondomain.Status `gorm:"type:text;not null;uniqueIndex:ux_payment_notifications_reference_status" json:"status"`
	ExternalStatus string                    `gorm:"type:text;not null" json:"external_status"`
	Provider       string                    `gorm:"type:text;not null" json:"provider"`
	Payload        datatypes.JSON            `gorm:"type:jsonb" json:"payload"`
	ReceivedAt     time.Time                 `gorm:"not null" json:"received_at"`
	ProcessedAt    *time.Time                `json:"processed_at"`
}

func (Notification) TableName() string { return "payment_notifications" }
