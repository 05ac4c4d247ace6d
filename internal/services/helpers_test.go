package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/puk-code-service/internal/codegen"
	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/i18n"
	"github.com/tbourn/puk-code-service/internal/repo"
)

// ---------- test helpers ----------

// newSvcDB opens a private in-memory database with the full schema on a
// single connection.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newFileSvcDB opens a file-backed database through repo.OpenSQLite so tests
// run against the production pool and pragmas.
func newFileSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open sqlite file: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newRequestSvc(db *gorm.DB, policy DuplicatePolicy) *RequestService {
	s := NewRequestService(db, codegen.Deriver{Length: 6}, policy)
	var n atomic.Int64
	s.Now = func() time.Time {
		return fixedNow.Add(time.Duration(n.Add(1)) * time.Second)
	}
	return s
}

func register(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	if err := repo.UpsertUser(context.Background(), db, id, "Ivan", "Petrov", "+79990000000"); err != nil {
		t.Fatalf("register user: %v", err)
	}
}

func countRequests(t *testing.T, db *gorm.DB, userID int64, status string) int64 {
	t.Helper()
	q := db.Model(&domain.Request{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count requests: %v", err)
	}
	return n
}

type sentMessage struct {
	ChatID int64
	Text   string
	KB     *Keyboard
}

// fakeNotifier records outbound messages; Err makes every send fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	Err  error
}

func (f *fakeNotifier) SendMessage(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, KB: kb})
	return nil
}

func (f *fakeNotifier) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

var errSendFailed = errors.New("send failed")

func newGateway(db *gorm.DB, n Notifier) *Gateway {
	return NewGateway(newRequestSvc(db, DuplicateReject), n, i18n.New("en"), 1001)
}
