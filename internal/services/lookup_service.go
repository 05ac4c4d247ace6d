package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LookupService resolves (VIN, PUK) pairs to issued codes. It is read-only.
type LookupService struct {
	DB *gorm.DB
}

// NewLookupService constructs a LookupService.
func NewLookupService(db *gorm.DB) *LookupService {
	return &LookupService{DB: db}
}

// Code returns the most recently issued code for the exact pair. Matching is
// case-sensitive: VINs are stored uppercase, so callers must send them that
// way. A miss yields ErrNotFound.
func (s *LookupService) Code(ctx context.Context, vin, puk string) (*domain.Code, error) {
	ctx, span := otel.Tracer("services/LookupService").Start(ctx, "Code",
		trace.WithAttributes(attribute.String("request.vin", vin)),
	)
	defer span.End()

	c, err := repo.LatestCode(ctx, s.DB, vin, puk)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return c, nil
}
