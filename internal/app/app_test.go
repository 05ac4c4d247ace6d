package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/puk-code-service/internal/codegen"
	"github.com/tbourn/puk-code-service/internal/config"
	"github.com/tbourn/puk-code-service/internal/dialog"
	"github.com/tbourn/puk-code-service/internal/repo"
)

func newAppDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		CodeLength:      8,
		CodeDigest:      "sha256",
		DuplicatePolicy: config.PolicySupersede,
		DialogStateTTL:  time.Hour,
		Bot:             config.BotConfig{AdminID: 1001, Language: "en"},
	}
}

func TestNew_WiresServicesWithMemoryDialog(t *testing.T) {
	a, err := New(context.Background(), testConfig(), newAppDB(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Requests == nil || a.Gateway == nil || a.Users == nil || a.Lookup == nil || a.Text == nil {
		t.Fatalf("services not wired: %+v", a)
	}
	if _, ok := a.Dialog.(*dialog.MemoryStore); !ok {
		t.Fatalf("want memory dialog store, got %T", a.Dialog)
	}
	if a.Requests.Deriver.Length != 8 || a.Requests.Policy != "supersede" {
		t.Fatalf("request service config not applied: %+v", a.Requests)
	}
	if a.Gateway.AdminID != 1001 || a.Gateway.Requests != a.Requests {
		t.Fatalf("gateway not wired: %+v", a.Gateway)
	}
}

func TestNew_RedisDialog(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	a, err := New(context.Background(), cfg, newAppDB(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Dialog.(*dialog.RedisStore); !ok {
		t.Fatalf("want redis dialog store, got %T", a.Dialog)
	}
	if err := a.Dialog.Set(context.Background(), 1, dialog.AwaitingPuk); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("pukbot:dialog:1") {
		t.Fatalf("dialog key not written to redis")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), testConfig(), nil, nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	if _, err := New(context.Background(), cfg, newAppDB(t), nil); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
	cfg = testConfig()
	cfg.CodeDigest = "md5"
	if _, err := New(context.Background(), cfg, newAppDB(t), nil); !errors.Is(err, codegen.ErrUnsupportedDigest) {
		t.Fatalf("want ErrUnsupportedDigest for unknown digest, got %v", err)
	}
}
