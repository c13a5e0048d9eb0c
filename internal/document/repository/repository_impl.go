package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/document/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO documents (id, subscription_id, document_url, type, name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.SubscriptionID,
		d.URL,
		d.Type,
		d.Name,
		d.CreatedAt,
	).Error
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.Document, error) {
	var docs []domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, document_url, type, name, created_at
		 FROM documents WHERE subscription_id = ?
		 ORDER BY created_at ASC, id ASC`,
		subscriptionID,
	).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
