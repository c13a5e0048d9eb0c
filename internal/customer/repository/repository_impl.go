package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const customerColumns = `id, phone, full_name, email, address, profession, birth_date, metadata, created_at, updated_at`

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, customer *domain.Customer) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (phone) DO NOTHING`,
		customer.ID,
		customer.Phone,
		customer.FullName,
		customer.Email,
		customer.Address,
		customer.Profession,
		customer.BirthDate,
		customer.Metadata,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE phone = ?`,
		phone,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

// FillProfile only writes columns that are still empty.
func (r *repo) FillProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, p domain.Profile, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET
		   full_name = CASE WHEN full_name IS NULL OR full_name = '' THEN ? ELSE full_name END,
		   email = CASE WHEN email IS NULL OR email = '' THEN ? ELSE email END,
		   address = CASE WHEN address IS NULL OR address = '' THEN ? ELSE address END,
		   profession = CASE WHEN profession IS NULL OR profession = '' THEN ? ELSE profession END,
		   birth_date = CASE WHEN birth_date IS NULL OR birth_date = '' THEN ? ELSE birth_date END,
		   updated_at = ?
		 WHERE id = ?`,
		p.FullName, p.Email, p.Address, p.Profession, p.BirthDate, now, id,
	).Error
}
