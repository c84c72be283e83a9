// Package app wires the user-service runtime: config, logging, storage,
// event publishing, and the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
	"github.com/Lerniqo/user-service/cmd/internal/auth"
	authapi "github.com/Lerniqo/user-service/cmd/internal/auth/api"
	"github.com/Lerniqo/user-service/cmd/internal/events"
	"github.com/Lerniqo/user-service/cmd/internal/metrics"
	"github.com/Lerniqo/user-service/cmd/security/password"
	"github.com/Lerniqo/user-service/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the service runtime. It owns the HTTP server, the DB pool and
// the event publisher, and closes them on shutdown.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	publisher events.Publisher
	met       *metrics.Metrics

	authAPI *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, dbPool, dbEnabled, err := newDirectory(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	met := metrics.New()

	codec, err := token.NewCodec(cfg.SecretKey, cfg.AccessTokenMaxAge)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	pwd, err := password.FromEnv()
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	svc, err := auth.NewService(log, auth.Config{
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
	}, dir, pwd, codec, publisher, met)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	var senderOpt authapi.HandlerOption
	if cfg.DevLogEmailCodes {
		senderOpt = authapi.WithEmailSender(authapi.LogEmailSender{Log: log})
	}
	handler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), svc, codec.MaxAge(), senderOpt)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		publisher: publisher,
		met:       met,
		authAPI:   handler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.met, a.authAPI)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(WithSecurityHeaders(mux), a.log, a.met),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.publisher.Close(); err != nil {
		a.log.Error("events.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newDirectory decides between Postgres-backed persistence and the
// in-memory dev store.
func newDirectory(ctx context.Context, cfg Config, log Logger) (directory.Directory, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return directory.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := directory.NewPostgresStore(pool, directory.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return store, pool, true, nil
}

func newPublisher(cfg Config, log Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("events.disabled.noop_publisher")
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
	if err != nil {
		return nil, err
	}
	log.Info("events.enabled.kafka_publisher", "brokers", cfg.KafkaBrokers)
	return pub, nil
}
