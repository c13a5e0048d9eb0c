package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReductionType string

const (
	ReductionPercentage ReductionType = "pourcentage"
	ReductionFixed      ReductionType = "montant"
)

// PromoCode attributes a subscription to a sales agent. The reduction is
// informational and shown to the client on documents.
type PromoCode struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code           string        `gorm:"not null;uniqueIndex" json:"code"`
	AgentID        string        `gorm:"column:agent_id" json:"agent_id,omitempty"`
	AgentName      string        `gorm:"column:agent_name" json:"agent,omitempty"`
	ReductionType  ReductionType `gorm:"column:reduction_type;type:text" json:"type_reduction,omitempty"`
	ReductionValue float64       `gorm:"column:reduction_value" json:"valeur,omitempty"`
	ExpiresAt      *time.Time    `gorm:"column:expires_at" json:"expiration,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
}

func (PromoCode) TableName() string { return "promo_codes" }

func (p PromoCode) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}
