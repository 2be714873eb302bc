package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/config"
	"github.com/lumenplan/chatgate/internal/csrf"
	"github.com/lumenplan/chatgate/internal/db"
	"github.com/lumenplan/chatgate/internal/gate"
	"github.com/lumenplan/chatgate/internal/httpapi"
	"github.com/lumenplan/chatgate/internal/ratelimit"
	"github.com/lumenplan/chatgate/internal/session"

	log "github.com/sirupsen/logrus"
)

const (
	auditBufferSize     = 256
	windowPurgeInterval = time.Hour
	windowRetention     = 24 * time.Hour
	shutdownTimeout     = 10 * time.Second
)

// RunServer boots the gating server and blocks until ctx is canceled or
// the listener fails.
func RunServer(ctx context.Context, cfg config.Config, port int) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	recorder := audit.NewRecorder(audit.NewGormSink(conn), auditBufferSize)
	defer recorder.Close()

	limiter, errLimiter := ratelimit.NewFromConfig(cfg, conn, nil)
	if errLimiter != nil {
		return errLimiter
	}
	limiter.SetFailOpenHook(func(identity string, err error) {
		recorder.Record(context.Background(), audit.Event{
			Action:   audit.ActionRateLimitFailOpen,
			Identity: identity,
			Detail:   map[string]any{"error": err.Error()},
		})
	})

	verifier := session.NewVerifier(session.NewJWTProvider(conn, cfg.JWT))
	guard := csrf.NewGuard(gate.CSRFProtectedPrefixes, cfg.SkipCSRFInDev, cfg.Production)
	g := gate.New(verifier, guard, limiter, recorder, cfg.RequestsPerHour, cfg.Production)

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), g.Middleware())
	httpapi.Register(engine, httpapi.Deps{
		DB:           conn,
		JWT:          cfg.JWT,
		Sink:         recorder,
		SecureCookie: cfg.Production,
	})

	if cfg.DeployMode == config.ModeShared {
		go purgeExpiredWindows(ctx, ratelimit.NewStoreLimiter(conn))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.WithFields(log.Fields{
		"port":              port,
		"deploy_mode":       cfg.DeployMode,
		"requests_per_hour": cfg.RequestsPerHour,
		"requests_per_day":  cfg.RequestsPerDay,
	}).Info("gate server started")
	if cfg.RequestsPerDay > 0 {
		// The daily ceiling is advisory: surfaced in configuration and
		// logs, not enforced by the gating path.
		log.Infof("daily request ceiling configured at %d (advisory)", cfg.RequestsPerDay)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// purgeExpiredWindows periodically deletes rate limit windows past the
// retention cutoff.
func purgeExpiredWindows(ctx context.Context, store *ratelimit.StoreLimiter) {
	ticker := time.NewTicker(windowPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-windowRetention)
			if errPurge := store.PurgeBefore(ctx, cutoff); errPurge != nil {
				log.WithError(errPurge).Warn("rate limit: window purge failed")
			}
		}
	}
}
