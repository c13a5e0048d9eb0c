package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Phone      string            `gorm:"not null;uniqueIndex" json:"phone"`
	FullName   string            `gorm:"column:full_name" json:"fullname,omitempty"`
	Email      string            `gorm:"column:email" json:"email,omitempty"`
	Address    string            `gorm:"column:address" json:"address,omitempty"`
	Profession string            `gorm:"column:profession" json:"profession,omitempty"`
	BirthDate  string            `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

// Profile holds the optional fields a conversation fills in over time.
type Profile struct {
	FullName   string
	Email      string
	Address    string
	Profession string
	BirthDate  string
}

// MissingFrom returns the fields of p that c does not have yet.
func (p Profile) MissingFrom(c Customer) Profile {
	var out Profile
	if c.FullName == "" {
		out.FullName = p.FullName
	}
	if c.Email == "" {
		out.Email = p.Email
	}
	if c.Address == "" {
		out.Address = p.Address
	}
	if c.Profession == "" {
		out.Profession = p.Profession
	}
	if c.BirthDate == "" {
		out.BirthDate = p.BirthDate
	}
	return out
}

func (p Profile) Empty() bool {
	return p == Profile{}
}
