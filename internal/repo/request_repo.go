// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Request model.
//
// Scoping rule shared by SetRequestStatus, DeleteRequests and GetRequest:
// when both VIN and Number are set in the filter the statement targets that
// exact pair, otherwise every request of the user. A non-empty Status further
// restricts the statement to rows currently in that status.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/puk-code-service/internal/domain"
)

// RequestFilter selects requests of one user.
type RequestFilter struct {
	UserID int64
	VIN    string
	Number string
	Status string
}

// Scoped reports whether the filter names an exact (VIN, number) pair.
func (f RequestFilter) Scoped() bool {
	return f.VIN != "" && f.Number != ""
}

func (f RequestFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", f.UserID)
	if f.Scoped() {
		q = q.Where("vin = ? AND number = ?", f.VIN, f.Number)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// ApprovedVIN is one approved request of a user as shown in admin search.
type ApprovedVIN struct {
	VIN       string
	CreatedAt string
}

// InsertRequest stores a new pending request. It returns ErrDuplicate when the
// user already has a pending request.
func InsertRequest(ctx context.Context, db *gorm.DB, userID int64, vin, number, createdAt string) (*domain.Request, error) {
	r := &domain.Request{
		UserID:    userID,
		VIN:       vin,
		Number:    number,
		Status:    domain.StatusPending,
		CreatedAt: createdAt,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// SetRequestStatus updates the status of the requests selected by f and
// returns the number of rows changed.
func SetRequestStatus(ctx context.Context, db *gorm.DB, f RequestFilter, status string) (int64, error) {
	res := f.apply(db.WithContext(ctx).Model(&domain.Request{})).
		Update("status", status)
	return res.RowsAffected, res.Error
}

// DeleteRequests removes the requests selected by f and returns the number of
// rows deleted.
func DeleteRequests(ctx context.Context, db *gorm.DB, f RequestFilter) (int64, error) {
	res := f.apply(db.WithContext(ctx)).Delete(&domain.Request{})
	return res.RowsAffected, res.Error
}

// GetRequest returns the newest request selected by f, or ErrNotFound.
func GetRequest(ctx context.Context, db *gorm.DB, f RequestFilter) (*domain.Request, error) {
	var r domain.Request
	err := f.apply(db.WithContext(ctx)).
		Order("id DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetPendingRequest returns the user's pending request, or ErrNotFound.
func GetPendingRequest(ctx context.Context, db *gorm.DB, userID int64) (*domain.Request, error) {
	return GetRequest(ctx, db, RequestFilter{UserID: userID, Status: domain.StatusPending})
}

// ApprovedVINs lists the VINs of the user's approved requests together with
// the request creation timestamps.
func ApprovedVINs(ctx context.Context, db *gorm.DB, userID int64) ([]ApprovedVIN, error) {
	var out []ApprovedVIN
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Select("vin, created_at").
		Where("user_id = ? AND status = ?", userID, domain.StatusApproved).
		Scan(&out).Error
	return out, err
}
