// Package services defines the business logic for access-code requests:
// the request lifecycle, administrator decisions, the user directory and
// code lookup. This file centralizes service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing chat text or HTTP status codes is performed at
// the bot and handler layers.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/puk-code-service/internal/repo"
)

// Validation errors. The specific values wrap ErrValidation so callers can
// match either the family or the exact cause.
var (
	// ErrValidation is the family of malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidVIN is returned when a VIN is empty or contains characters
	// other than A-Z and 0-9 after uppercasing.
	ErrInvalidVIN = fmt.Errorf("%w: vin must match [A-Z0-9]+", ErrValidation)

	// ErrInvalidNumber is returned when a PUK number is empty or not all digits.
	ErrInvalidNumber = fmt.Errorf("%w: number must match [0-9]+", ErrValidation)

	// ErrMalformedAction is returned for action tokens with the wrong field
	// count, an unknown verb or a non-numeric user id.
	ErrMalformedAction = fmt.Errorf("%w: malformed action token", ErrValidation)
)

// Lifecycle errors.
var (
	// ErrDuplicateRequest indicates the user already has a pending request.
	ErrDuplicateRequest = errors.New("request already pending")

	// ErrNotRegistered is returned when a user submits a request before
	// sharing a contact.
	ErrNotRegistered = errors.New("user not registered")

	// ErrAlreadyResolved is returned when a decision targets a request that is
	// no longer pending, e.g. a replayed approve or reject token.
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrNotFound indicates a lookup or search miss.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable wraps connection-level store failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// storageErr classifies a raw persistence error. Connection failures become
// ErrStorageUnavailable; anything else is returned unchanged.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if repo.IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
