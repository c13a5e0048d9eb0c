package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent reports false when a customer with the same phone exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*Customer, error)
	FillProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, profile Profile, now time.Time) error
}
