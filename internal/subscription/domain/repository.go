package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	// UpdateStatus moves the row to next only while it is in one of from,
	// and reports whether a row changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, next Status, now time.Time) (bool, error)
	// InsertDetail reports false when the subscription already has a detail.
	InsertDetail(ctx context.Context, db *gorm.DB, detail Detail) (bool, error)
	HasDetail(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, product ProductType) (bool, error)
}
