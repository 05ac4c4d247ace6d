// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Code model.
//
// Codes are append-only: there is no update or delete here.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/puk-code-service/internal/domain"
)

// InsertCode appends an issued code row.
func InsertCode(ctx context.Context, db *gorm.DB, userID int64, vin, number, code, createdAt string) (*domain.Code, error) {
	c := &domain.Code{
		UserID:    userID,
		VIN:       vin,
		Number:    number,
		Code:      code,
		CreatedAt: createdAt,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// LatestCode returns the most recently issued code for the exact (vin, number)
// pair. Ties on created_at are broken by the higher id. Returns ErrNotFound
// when nothing was issued.
func LatestCode(ctx context.Context, db *gorm.DB, vin, number string) (*domain.Code, error) {
	var c domain.Code
	err := db.WithContext(ctx).
		Where("vin = ? AND number = ?", vin, number).
		Order("created_at DESC, id DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCodes returns how many code rows exist for (vin, number).
func CountCodes(ctx context.Context, db *gorm.DB, vin, number string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Code{}).
		Where("vin = ? AND number = ?", vin, number).
		Count(&n).Error
	return n, err
}
