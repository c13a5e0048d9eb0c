package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, subscription_id, amount, reference, payment_method, status,
			phone, external_reference, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.SubscriptionID,
		tx.Amount,
		tx.Reference,
		tx.Method,
		tx.Status,
		tx.Phone,
		tx.ExternalReference,
		tx.CreatedAt,
		tx.UpdatedAt,
	).Error
}

func (r *repo) FindTransactionByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, amount, reference, payment_method, status,
			phone, external_reference, created_at, updated_at
		 FROM transactions
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.Status, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		now,
		id,
	).Error
}

func (r *repo) SetExternalReference(ctx context.Context, db *gorm.DB, id snowflake.ID, external string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET external_reference = ?, updated_at = ?
		 WHERE id = ?`,
		external,
		now,
		id,
	).Error
}

func (r *repo) InsertNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_notifications (
			id, reference, status, external_status, provider, payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (reference, status) DO NOTHING`,
		n.ID,
		n.Reference,
		n.Status,
		n.ExternalStatus,
		n.Provider,
		n.Payload,
		n.ReceivedAt,
		n.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindNotification(ctx context.Context, db *gorm.DB, reference string, status subscriptiondomain.Status) (*domain.Notification, error) {
	var item domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, reference, status, external_status, provider, payload, received_at, processed_at
		 FROM payment_notifications
		 WHERE reference = ? AND status = ?
		 LIMIT 1`,
		reference,
		status,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListUnprocessedNotifications(ctx context.Context, db *gorm.DB, limit int) ([]domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, reference, status, external_status, provider, payload, received_at, processed_at
		 FROM payment_notifications
		 WHERE processed_at IS NULL
		 ORDER BY received_at ASC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkNotificationProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_notifications
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
