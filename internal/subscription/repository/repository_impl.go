package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, customer_id, product_type, status, premium, coverage, promo_code, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.CustomerID,
		s.ProductType,
		s.Status,
		s.Premium,
		s.Coverage,
		s.PromoCode,
		s.Source,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, product_type, status, premium, coverage, promo_code, source, created_at, updated_at
		 FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, next domain.Status, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		next,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertDetail(ctx context.Context, db *gorm.DB, detail domain.Detail) (bool, error) {
	res := db.WithContext(ctx).
		Table(detail.TableName()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subscription_id"}}, DoNothing: true}).
		Create(detail)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) HasDetail(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, product domain.ProductType) (bool, error) {
	table, ok := domain.DetailTable(product)
	if !ok {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidProductType, product)
	}
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM `+table+` WHERE subscription_id = ?`,
		subscriptionID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
