package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/repo"
)

// UserHit is one admin search result: the user plus the VINs of their
// approved requests.
type UserHit struct {
	User     domain.User
	Approved []repo.ApprovedVIN
}

// UserService is the user directory: registration and admin search.
type UserService struct {
	DB *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Register stores or refreshes the contact data of a user.
func (s *UserService) Register(ctx context.Context, id int64, firstName, lastName, phone string) (*domain.User, error) {
	if err := repo.UpsertUser(ctx, s.DB, id, firstName, lastName, phone); err != nil {
		return nil, storageErr(err)
	}
	return &domain.User{UserID: id, FirstName: firstName, LastName: lastName, Phone: phone}, nil
}

// IsRegistered reports whether the user has shared a contact.
func (s *UserService) IsRegistered(ctx context.Context, id int64) (bool, error) {
	ok, err := repo.IsRegistered(ctx, s.DB, id)
	return ok, storageErr(err)
}

// Get returns a registered user, or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr(err)
	}
	return u, nil
}

// Search finds users by id, name or phone substring and attaches their
// approved VINs. An empty result yields ErrNotFound.
func (s *UserService) Search(ctx context.Context, query string) ([]UserHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}
	users, err := repo.SearchUsers(ctx, s.DB, query)
	if err != nil {
		return nil, storageErr(err)
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	hits := make([]UserHit, 0, len(users))
	for _, u := range users {
		vins, err := repo.ApprovedVINs(ctx, s.DB, u.UserID)
		if err != nil {
			return nil, storageErr(err)
		}
		hits = append(hits, UserHit{User: u, Approved: vins})
	}
	return hits, nil
}
