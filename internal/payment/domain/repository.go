package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindTransactionByReference(ctx context.Context, db *gorm.DB, reference string) (*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.Status, now time.Time) error
	SetExternalReference(ctx context.Context, db *gorm.DB, id snowflake.ID, external string, now time.Time) error

	InsertNotification(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	FindNotification(ctx context.Context, db *gorm.DB, reference string, status subscriptiondomain.Status) (*Notification, error)
	ListUnprocessedNotifications(ctx context.Context, db *gorm.DB, limit int) ([]Notification, error)
	MarkNotificationProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
