// Package services – RequestService
//
// This file implements the request lifecycle engine. A request moves from
// nothing to pending on Submit, from pending to approved on Approve (which
// also issues the derived code), and from pending to deleted on Reject.
//
// The one-pending-request-per-user rule is enforced by a partial unique
// index, so two concurrent submissions cannot both succeed.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/tbourn/puk-code-service/internal/codegen"
	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DuplicatePolicy selects what Submit does when the user already has a
// pending request.
type DuplicatePolicy string

const (
	// DuplicateReject refuses the new request with ErrDuplicateRequest.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateSupersede deletes the pending request and stores the new one.
	DuplicateSupersede DuplicatePolicy = "supersede"
)

var (
	vinRE    = regexp.MustCompile(`^[A-Z0-9]+$`)
	numberRE = regexp.MustCompile(`^[0-9]+$`)
)

// requestKey is the validated shape of a (VIN, number) pair.
type requestKey struct {
	VIN    string `validate:"required,vin"`
	Number string `validate:"required,puk"`
}

func newKeyValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("vin", func(fl validator.FieldLevel) bool {
		return vinRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("puk", func(fl validator.FieldLevel) bool {
		return numberRE.MatchString(fl.Field().String())
	})
	return v
}

// SubmitAck describes a freshly stored request for the administrator notice.
type SubmitAck struct {
	UserID    int64
	FirstName string
	LastName  string
	VIN       string
	Number    string
	CreatedAt string
}

// DisplayName joins the stored name parts.
func (a SubmitAck) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Issued is the result of an approval.
type Issued struct {
	UserID    int64
	VIN       string
	Number    string
	Code      string
	CreatedAt string
}

// RequestService drives requests through their lifecycle.
type RequestService struct {
	DB      *gorm.DB
	Deriver codegen.Deriver
	Policy  DuplicatePolicy

	// Now is the clock used for timestamps; defaults to time.Now.
	Now func() time.Time

	validate *validator.Validate
}

// NewRequestService constructs a RequestService.
func NewRequestService(db *gorm.DB, d codegen.Deriver, policy DuplicatePolicy) *RequestService {
	if policy == "" {
		policy = DuplicateReject
	}
	return &RequestService{
		DB:       db,
		Deriver:  d,
		Policy:   policy,
		Now:      time.Now,
		validate: newKeyValidator(),
	}
}

// NormalizeKey uppercases the VIN, trims both parts and validates their
// shape. It returns ErrInvalidVIN or ErrInvalidNumber on failure.
func (s *RequestService) NormalizeKey(vin, number string) (string, string, error) {
	k := requestKey{
		VIN:    strings.ToUpper(strings.TrimSpace(vin)),
		Number: strings.TrimSpace(number),
	}
	if s.validate == nil {
		s.validate = newKeyValidator()
	}
	if err := s.validate.Struct(k); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].StructField() == "Number" {
			return "", "", ErrInvalidNumber
		}
		return "", "", ErrInvalidVIN
	}
	return k.VIN, k.Number, nil
}

// Submit validates and stores a new pending request for userID.
func (s *RequestService) Submit(ctx context.Context, userID int64, vin, number string) (*SubmitAck, error) {
	ctx, span := otel.Tracer("services/RequestService").Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	vin, number, err := s.NormalizeKey(vin, number)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("request.vin", vin))

	var ack *SubmitAck
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotRegistered
			}
			return err
		}

		if s.Policy == DuplicateSupersede {
			if _, err := repo.DeleteRequests(ctx, tx, repo.RequestFilter{
				UserID: userID,
				Status: domain.StatusPending,
			}); err != nil {
				return err
			}
		}

		r, err := repo.InsertRequest(ctx, tx, userID, vin, number, domain.FormatTime(s.now()))
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateRequest
			}
			return err
		}

		ack = &SubmitAck{
			UserID:    userID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			VIN:       r.VIN,
			Number:    r.Number,
			CreatedAt: r.CreatedAt,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return ack, nil
}

// Approve moves the user's pending (vin, number) request to approved and
// stores the code derived from the stored key. A request that is no longer
// pending yields ErrAlreadyResolved.
func (s *RequestService) Approve(ctx context.Context, userID int64, vin, number string) (*Issued, error) {
	ctx, span := otel.Tracer("services/RequestService").Start(ctx, "Approve",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	vin, number, err := s.NormalizeKey(vin, number)
	if err != nil {
		return nil, err
	}

	var out *Issued
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := repo.RequestFilter{UserID: userID, VIN: vin, Number: number, Status: domain.StatusPending}

		req, err := repo.GetRequest(ctx, tx, f)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAlreadyResolved
			}
			return err
		}

		n, err := repo.SetRequestStatus(ctx, tx, f, domain.StatusApproved)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyResolved
		}

		code, err := s.Deriver.Derive(req.VIN, req.Number)
		if err != nil {
			return err
		}
		c, err := repo.InsertCode(ctx, tx, userID, req.VIN, req.Number, code, domain.FormatTime(s.now()))
		if err != nil {
			return err
		}
		out = &Issued{
			UserID:    userID,
			VIN:       c.VIN,
			Number:    c.Number,
			Code:      c.Code,
			CreatedAt: c.CreatedAt,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return out, nil
}

// Reject deletes the user's pending request. With vin and number both set
// only that pair is targeted. Approved history is kept. ErrAlreadyResolved is
// returned when nothing was pending.
func (s *RequestService) Reject(ctx context.Context, userID int64, vin, number string) error {
	ctx, span := otel.Tracer("services/RequestService").Start(ctx, "Reject",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	f := repo.RequestFilter{UserID: userID, Status: domain.StatusPending}
	if vin != "" || number != "" {
		v, n, err := s.NormalizeKey(vin, number)
		if err != nil {
			return err
		}
		f.VIN, f.Number = v, n
	}

	n, err := repo.DeleteRequests(ctx, s.DB, f)
	if err != nil {
		span.RecordError(err)
		return storageErr(err)
	}
	if n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// Pending returns the user's pending request, or ErrNotFound.
func (s *RequestService) Pending(ctx context.Context, userID int64) (*domain.Request, error) {
	r, err := repo.GetPendingRequest(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr(err)
	}
	return r, nil
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
