// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Functions:
//
//   - UpsertUser(ctx, db, id, first, last, phone) -> error
//     Inserts a user or overwrites name and phone on conflict by user_id.
//
//   - IsRegistered(ctx, db, id) -> (bool, error)
//
//   - GetUser(ctx, db, id) -> *domain.User, error
//     Returns ErrNotFound if missing.
//
//   - SearchUsers(ctx, db, query) -> []domain.User, error
//     Case-insensitive substring match on id, names and phone.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/puk-code-service/internal/domain"
)

// UpsertUser inserts the user or, when user_id already exists, replaces the
// stored name parts and phone with the given values.
func UpsertUser(ctx context.Context, db *gorm.DB, id int64, firstName, lastName, phone string) error {
	u := &domain.User{
		UserID:    id,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     phone,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "phone"}),
		}).
		Create(u).Error
}

// IsRegistered reports whether a user row exists for id.
func IsRegistered(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", id).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("user_id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SearchUsers returns users whose id, first name, last name or phone contains
// query, ignoring case. The result order is whatever the store returns.
//
// LOWER(..) LIKE is used instead of ILIKE so the same statement runs on both
// SQLite and Postgres. SQLite only folds ASCII letters.
func SearchUsers(ctx context.Context, db *gorm.DB, query string) ([]domain.User, error) {
	like := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var out []domain.User
	err := db.WithContext(ctx).
		Where(`LOWER(CAST(user_id AS TEXT)) LIKE ? ESCAPE '\'
			OR LOWER(first_name) LIKE ? ESCAPE '\'
			OR LOWER(last_name) LIKE ? ESCAPE '\'
			OR LOWER(phone) LIKE ? ESCAPE '\'`, like, like, like, like).
		Find(&out).Error
	return out, err
}

// escapeLike neutralizes LIKE wildcards so the query is a plain substring.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
