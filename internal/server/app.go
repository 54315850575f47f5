// Package server wires configuration, storage, services and transports into
// the running WBCMS auth server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server/config"
	"github.com/dmitrijs2005/wbcms/internal/server/httpapi"
	"github.com/dmitrijs2005/wbcms/internal/server/mailer"
	"github.com/dmitrijs2005/wbcms/internal/server/ratelimit"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wbcms/internal/server/services"
	"github.com/dmitrijs2005/wbcms/internal/server/shared/db"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/wbcms/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	redis        *redis.Client
	limiter      ratelimit.Limiter
	userService  *services.UserService
	resetService *services.PasswordResetService
	metrics      *httpapi.Metrics
}

// NewApp connects to the database and builds the services. It does not
// start any listener.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	conn, err := db.Open(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{
		config:      c,
		logger:      logger,
		db:          conn,
		repomanager: repomanager.NewPostgresRepositoryManager(),
		metrics:     httpapi.NewMetrics(),
	}

	limiter, err := app.newLimiter()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	app.limiter = limiter

	app.userService = services.NewUserService(conn, app.repomanager, c, logger)
	app.resetService = services.NewPasswordResetService(conn, app.repomanager, limiter, app.newMailer(), c, logger)

	return app, nil
}

func (app *App) newLimiter() (ratelimit.Limiter, error) {
	switch app.config.RateLimiterBackend {
	case "", "memory":
		return ratelimit.NewMemoryLimiter(), nil
	case "redis":
		app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		return ratelimit.NewRedisLimiter(app.redis, ratelimit.DefaultKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter backend %q", app.config.RateLimiterBackend)
	}
}

// newMailer falls back to logging the message when no SMTP relay is configured.
func (app *App) newMailer() mailer.Mailer {
	if app.config.SMTPHost == "" {
		app.logger.Warn(context.Background(), "SMTP host not configured, reset mail will be logged only")
		return mailer.NewLogMailer(app.logger)
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     app.config.SMTPHost,
		Port:     app.config.SMTPPort,
		User:     app.config.SMTPUser,
		Password: app.config.SMTPPassword,
		From:     app.config.MailFrom,
	})
}

func (app *App) Users() *services.UserService {
	return app.userService
}

func (app *App) Resets() *services.PasswordResetService {
	return app.resetService
}

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Ping reports database reachability and, with the redis backend, Redis too.
func (app *App) Ping(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the database pool and the Redis client.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context) error {
	h := httpapi.NewHandler(app.userService, app.resetService, app.Ping, app.metrics, app.logger).
		WithResetThrottle(app.limiter, app.config.ResetClientLimit, app.config.ResetClientWindow)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, h.Router(), app.logger)

	if err := s.Run(ctx); err != nil {
		logging.LogError(ctx, app.logger, "http server failed", err)
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.Ping, gs.DefaultCheckInterval, app.logger)

	if err := s.Run(ctx); err != nil {
		logging.LogError(ctx, app.logger, "grpc server failed", err)
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Run migrates the schema and serves HTTP and gRPC until a signal arrives
// or either server fails. A server failure stops the other one and is
// returned.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	app.initSignalHandler(cancelFunc)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		runErr error
	)
	serve := func(start func(context.Context) error) {
		defer wg.Done()
		if err := start(ctx); err != nil {
			mu.Lock()
			runErr = errors.Join(runErr, err)
			mu.Unlock()
			cancelFunc()
		}
	}

	wg.Add(2)
	go serve(app.startHTTPServer)
	go serve(app.startGRPCServer)

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return runErr
}
