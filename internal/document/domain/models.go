// Package domain describes the documents attached to a subscription.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Type tags are persisted verbatim.
type Type string

const (
	TypeIdentity Type = "identity"
	TypeProposal Type = "proposition"
	TypeReceipt  Type = "recu"
)

func (t Type) Valid() bool {
	switch t {
	case TypeIdentity, TypeProposal, TypeReceipt:
		return true
	}
	return false
}

// Document rows are append-only.
type Document struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	URL            string       `gorm:"column:document_url;type:text;not null" json:"document_url"`
	Type           Type         `gorm:"type:text;not null" json:"type"`
	Name           string       `gorm:"type:text" json:"nom"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Document) TableName() string { return "documents" }

// Line is one itemized amount printed on a proposal.
type Line struct {
	Label  string
	Amount int64
}

// Proposal carries everything printed on a proposal or a paid receipt.
type Proposal struct {
	SubscriptionID snowflake.ID
	CustomerName   string
	Phone          string
	Product        string
	Amount         int64
	Reference      string
	Coverage       string
	PromoCode      string
	Lines          []Line
	IssuedAt       time.Time
	Paid           bool
}

type RenderKind int

const (
	Rendered RenderKind = iota + 1
	FallbackRendered
)

func (k RenderKind) String() string {
	switch k {
	case Rendered:
		return "rendered"
	case FallbackRendered:
		return "fallback_rendered"
	}
	return "unknown"
}

// RenderOutcome is the produced content. Cause is set when the PDF renderer
// failed and the plain text fallback was used instead.
type RenderOutcome struct {
	Kind        RenderKind
	Content     []byte
	ContentType string
	Extension   string
	Cause       error
}
