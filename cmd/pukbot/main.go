// Command pukbot runs the Telegram approval bot and the code lookup API.
//
// @title       PUK Code Service API
// @version     1.0
// @description Read-only lookup of one-time codes issued through the Telegram approval flow.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/puk-code-service/internal/app"
	"github.com/tbourn/puk-code-service/internal/bot"
	"github.com/tbourn/puk-code-service/internal/config"
	httpapi "github.com/tbourn/puk-code-service/internal/http"
	"github.com/tbourn/puk-code-service/internal/observability"
	"github.com/tbourn/puk-code-service/internal/repo"
	"github.com/tbourn/puk-code-service/internal/services"
	"github.com/tbourn/puk-code-service/internal/sysutil"
	"github.com/tbourn/puk-code-service/internal/transport/telegram"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on environment")
	}

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("pukbot stopped")
	}
	log.Info().Msg("pukbot stopped")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.Mode)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:       cfg.DBDriver,
		Path:         cfg.DBPath,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	var (
		tg       *telegram.Client
		notifier services.Notifier
	)
	if cfg.RunsBot() {
		if tg, err = telegram.New(cfg.Bot.Token, cfg.Bot.PollTimeout); err != nil {
			return err
		}
		notifier = tg
	}

	a, err := app.New(ctx, cfg, db, notifier)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RunsAPI() {
		srv := newServer(cfg, a)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Str("mode", cfg.Mode).Msg("http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if cfg.RunsBot() {
		b := bot.New(a, tg)
		disp := bot.NewDispatcher(b.Handle, cfg.Bot.IdleWorker)
		g.Go(func() error {
			log.Info().Str("bot", tg.Username()).Int64("admin_id", cfg.Bot.AdminID).Msg("bot starting")
			err := tg.Run(gctx, disp.Dispatch)
			disp.Wait()
			return err
		})
	}

	return g.Wait()
}

func newServer(cfg config.Config, a *app.App) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, a.Lookup)

	return &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
