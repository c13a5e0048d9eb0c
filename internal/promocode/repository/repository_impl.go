package repository

import (
	"context"

	"github.com/smallbiznis/covera/internal/promocode/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *domain.PromoCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promo_codes (id, code, agent_id, agent_name, reduction_type, reduction_value, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.Code,
		code.AgentID,
		code.AgentName,
		code.ReductionType,
		code.ReductionValue,
		code.ExpiresAt,
		code.CreatedAt,
	).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.PromoCode, error) {
	var promo domain.PromoCode
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, agent_id, agent_name, reduction_type, reduction_value, expires_at, created_at
		 FROM promo_codes WHERE code = ?`,
		code,
	).Scan(&promo).Error
	if err != nil {
		return nil, err
	}
	if promo.ID == 0 {
		return nil, nil
	}
	return &promo, nil
}
