// Package app builds the application context: the configured services and
// their shared collaborators, constructed once at startup and passed by
// reference to the chat bot and the HTTP layer.
package app

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/puk-code-service/internal/codegen"
	"github.com/tbourn/puk-code-service/internal/config"
	"github.com/tbourn/puk-code-service/internal/dialog"
	"github.com/tbourn/puk-code-service/internal/i18n"
	"github.com/tbourn/puk-code-service/internal/services"
)

// App is the explicit application context.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Notifier services.Notifier
	Text     *i18n.Printer

	Requests *services.RequestService
	Gateway  *services.Gateway
	Users    *services.UserService
	Lookup   *services.LookupService
	Dialog   dialog.Store

	redis *redis.Client
}

// New wires services over db. notifier may be nil when the bot is disabled.
// With REDIS_URL set, dialog state lives in Redis; otherwise in memory.
func New(ctx context.Context, cfg config.Config, db *gorm.DB, notifier services.Notifier) (*App, error) {
	if db == nil {
		return nil, errors.New("app: nil database")
	}
	text := i18n.New(cfg.Bot.Language)
	deriver, err := codegen.NewDeriver(cfg.CodeLength, cfg.CodeDigest)
	if err != nil {
		return nil, err
	}
	requests := services.NewRequestService(db, deriver, services.DuplicatePolicy(cfg.DuplicatePolicy))

	a := &App{
		Config:   cfg,
		DB:       db,
		Notifier: notifier,
		Text:     text,
		Requests: requests,
		Gateway:  services.NewGateway(requests, notifier, text, cfg.Bot.AdminID),
		Users:    services.NewUserService(db),
		Lookup:   services.NewLookupService(db),
	}

	if cfg.RedisURL != "" {
		store, client, err := dialog.Dial(ctx, cfg.RedisURL, cfg.DialogStateTTL)
		if err != nil {
			return nil, err
		}
		a.Dialog, a.redis = store, client
		log.Info().Msg("dialog state in redis")
	} else {
		a.Dialog = dialog.NewMemoryStore(cfg.DialogStateTTL)
	}
	return a, nil
}

// Close releases the Redis client and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	} else {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
