package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tbourn/puk-code-service/internal/codegen"
	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/repo"
)

// ---------- Submit() ----------

func TestSubmit_NormalizesAndStoresPending(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	ack, err := s.Submit(context.Background(), 7, "abc123", "4567")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ack.VIN != "ABC123" || ack.Number != "4567" || ack.UserID != 7 || ack.DisplayName() != "Ivan Petrov" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	r, err := repo.GetPendingRequest(context.Background(), db, 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if r.VIN != "ABC123" || r.Status != domain.StatusPending || r.CreatedAt != ack.CreatedAt {
		t.Fatalf("unexpected stored request: %+v", r)
	}
	if _, err := domain.ParseTime(r.CreatedAt); err != nil {
		t.Fatalf("created_at not ISO-8601: %q (%v)", r.CreatedAt, err)
	}
}

func TestSubmit_RejectsMalformedKeys(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	cases := []struct {
		vin, number string
		want        error
	}{
		{"", "4567", ErrInvalidVIN},
		{"AB-123", "4567", ErrInvalidVIN},
		{"ABC:1", "4567", ErrInvalidVIN},
		{"ВАЗ123", "4567", ErrInvalidVIN},
		{"ABC123", "", ErrInvalidNumber},
		{"ABC123", "45a7", ErrInvalidNumber},
		{"ABC123", "-1", ErrInvalidNumber},
	}
	for _, tc := range cases {
		_, err := s.Submit(context.Background(), 7, tc.vin, tc.number)
		if !errors.Is(err, tc.want) || !errors.Is(err, ErrValidation) {
			t.Fatalf("Submit(%q,%q) err = %v; want %v", tc.vin, tc.number, err, tc.want)
		}
	}
	if n := countRequests(t, db, 7, ""); n != 0 {
		t.Fatalf("invalid submissions must not be stored, got %d rows", n)
	}
}

func TestSubmit_UnregisteredUser(t *testing.T) {
	db := newSvcDB(t)
	s := newRequestSvc(db, DuplicateReject)

	if _, err := s.Submit(context.Background(), 99, "ABC123", "4567"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSubmit_DuplicatePendingRejected(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	first, err := s.Submit(ctx, 7, "ABC123", "4567")
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := s.Submit(ctx, 7, "XYZ999", "1"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}

	r, err := repo.GetPendingRequest(ctx, db, 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if r.VIN != "ABC123" || r.Number != "4567" || r.CreatedAt != first.CreatedAt {
		t.Fatalf("existing pending row changed: %+v", r)
	}
	if n := countRequests(t, db, 7, ""); n != 1 {
		t.Fatalf("want 1 request row, got %d", n)
	}
}

func TestSubmit_SupersedeReplacesPending(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateSupersede)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := s.Submit(ctx, 7, "xyz999", "1"); err != nil {
		t.Fatalf("superseding Submit: %v", err)
	}

	r, err := repo.GetPendingRequest(ctx, db, 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if r.VIN != "XYZ999" || r.Number != "1" {
		t.Fatalf("pending row not replaced: %+v", r)
	}
	if n := countRequests(t, db, 7, domain.StatusPending); n != 1 {
		t.Fatalf("want exactly 1 pending row, got %d", n)
	}
}

func TestSubmit_ConcurrentSameUserLeavesOnePending(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.Submit(context.Background(), 7, "ABC123", "4567")
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateRequest):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Fatalf("want one success and one duplicate, got ok=%d dup=%d", ok, dup)
	}
	if n := countRequests(t, db, 7, domain.StatusPending); n != 1 {
		t.Fatalf("want exactly 1 pending row, got %d", n)
	}
}

func TestSubmit_ConcurrentSameUserOnPooledFileDB(t *testing.T) {
	db := newFileSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	const workers = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, workers)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.Submit(context.Background(), 7, fmt.Sprintf("VIN%03d", i), "4567")
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateRequest):
		default:
			t.Fatalf("worker %d: unexpected error: %v", i, err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly one accepted submit, got %d", ok)
	}
	if n := countRequests(t, db, 7, domain.StatusPending); n != 1 {
		t.Fatalf("want exactly 1 pending row, got %d", n)
	}
}

// ---------- Approve() ----------

func TestApprove_IssuesDerivedCode(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "abc123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	issued, err := s.Approve(ctx, 7, "ABC123", "4567")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	want := codegen.Derive("ABC123", "4567", 6)
	if issued.Code != want || len(issued.Code) != 6 {
		t.Fatalf("code = %q; want %q", issued.Code, want)
	}
	if n, _ := repo.CountCodes(ctx, db, "ABC123", "4567"); n != 1 {
		t.Fatalf("want exactly 1 codes row, got %d", n)
	}
	if n := countRequests(t, db, 7, domain.StatusApproved); n != 1 {
		t.Fatalf("request not approved")
	}
	if n := countRequests(t, db, 7, domain.StatusPending); n != 0 {
		t.Fatalf("request still pending")
	}
}

func TestApprove_LowercaseKeyUsesStoredValues(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	issued, err := s.Approve(ctx, 7, "abc123", "4567")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	c, err := repo.LatestCode(ctx, db, "ABC123", "4567")
	if err != nil {
		t.Fatalf("LatestCode: %v", err)
	}
	if c.VIN != "ABC123" || c.Code != issued.Code {
		t.Fatalf("unexpected code row: %+v", c)
	}
}

func TestApprove_ReplayIsAlreadyResolved(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Approve(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	if _, err := s.Approve(ctx, 7, "ABC123", "4567"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("replayed approve: want ErrAlreadyResolved, got %v", err)
	}
	if n, _ := repo.CountCodes(ctx, db, "ABC123", "4567"); n != 1 {
		t.Fatalf("replay must not issue another code, got %d rows", n)
	}
}

func TestApprove_UnsupportedDigestRollsBack(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	s.Deriver = codegen.Deriver{Length: 6, Digest: "md5"}
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Approve(ctx, 7, "ABC123", "4567"); !errors.Is(err, codegen.ErrUnsupportedDigest) {
		t.Fatalf("want ErrUnsupportedDigest, got %v", err)
	}
	if n, _ := repo.CountCodes(ctx, db, "ABC123", "4567"); n != 0 {
		t.Fatalf("no code may be stored, got %d", n)
	}
	if n := countRequests(t, db, 7, domain.StatusPending); n != 1 {
		t.Fatalf("request must stay pending after a failed approval")
	}
}

func TestApprove_UnknownRequest(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	if _, err := s.Approve(context.Background(), 7, "ABC123", "4567"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("want ErrAlreadyResolved, got %v", err)
	}
}

func TestApprove_RepeatPairAppendsRowWithSameCode(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	var codes []string
	for i := 0; i < 2; i++ {
		if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
		issued, err := s.Approve(ctx, 7, "ABC123", "4567")
		if err != nil {
			t.Fatalf("Approve #%d: %v", i, err)
		}
		codes = append(codes, issued.Code)
	}
	if codes[0] != codes[1] {
		t.Fatalf("re-approval must derive the same code: %v", codes)
	}
	if n, _ := repo.CountCodes(ctx, db, "ABC123", "4567"); n != 2 {
		t.Fatalf("want 2 codes rows, got %d", n)
	}
}

// ---------- Reject() ----------

func TestReject_RemovesPendingKeepsHistory(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "OLD1", "1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Approve(ctx, 7, "OLD1", "1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := s.Reject(ctx, 7, "", ""); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := s.Pending(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending after reject: want ErrNotFound, got %v", err)
	}
	if n := countRequests(t, db, 7, domain.StatusApproved); n != 1 {
		t.Fatalf("approved history must survive reject, got %d", n)
	}
}

func TestReject_NothingPending(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	if err := s.Reject(context.Background(), 7, "", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("want ErrAlreadyResolved, got %v", err)
	}
}

func TestReject_ScopedMismatchKeepsRequest(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)
	ctx := context.Background()

	if _, err := s.Submit(ctx, 7, "ABC123", "4567"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Reject(ctx, 7, "OTHER1", "4567"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("want ErrAlreadyResolved, got %v", err)
	}
	if err := s.Reject(ctx, 7, "abc123", "4567"); err != nil {
		t.Fatalf("scoped Reject: %v", err)
	}
	if n := countRequests(t, db, 7, ""); n != 0 {
		t.Fatalf("want no requests, got %d", n)
	}
}

// ---------- storage failures ----------

func TestSubmit_StorageUnavailable(t *testing.T) {
	db := newSvcDB(t)
	register(t, db, 7)
	s := newRequestSvc(db, DuplicateReject)

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	if _, err := s.Submit(context.Background(), 7, "ABC123", "4567"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}
