// Package server wires the chat server together: secrets chain, lazily
// built connection pool with schema convergence, services, file storage and
// the HTTP and gRPC transports. It also handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/logging"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
	"github.com/dmitrijs2005/chatkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/chatkeeper/internal/server/pool"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatkeeper/internal/server/schema"
	"github.com/dmitrijs2005/chatkeeper/internal/server/secrets"
	"github.com/dmitrijs2005/chatkeeper/internal/server/services"
	"github.com/dmitrijs2005/chatkeeper/internal/server/storage"
	"github.com/sethvargo/go-retry"

	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/chatkeeper/internal/server/grpc"
)

// retryBase is the first backoff step of startup pool acquisition.
var retryBase = time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	pools       *pool.Manager
	repomanager repomanager.RepositoryManager
	files       storage.Storage
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewStdoutLogger(slog.LevelInfo)

	if c.SecretKey == "" {
		key, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("session key: %w", err)
		}
		c.SecretKey = key
		logger.Warn(ctx, "no session secret configured, using an ephemeral one; sessions will not survive a restart")
	}

	provider, err := newSecretsProvider(c, logger)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager(schema.NewEngine(logger))
	pools := pool.NewManager(provider, rm.Converge, logger)

	files, err := storage.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &App{config: c, logger: logger, pools: pools, repomanager: rm, files: files}, nil
}

// newSecretsProvider chains config, Vault (when configured) and the
// environment, in that order.
func newSecretsProvider(c *config.Config, logger logging.Logger) (secrets.Provider, error) {
	providers := []secrets.Provider{
		secrets.StaticProvider{Config: secrets.DatabaseConfig{
			Descriptor: c.DatabaseDSN,
			Host:       c.DBHost,
			Database:   c.DBName,
			User:       c.DBUser,
			Credential: c.DBPassword,
		}},
	}
	if c.VaultAddress != "" {
		vp, err := secrets.NewVaultProvider(c.VaultAddress, c.VaultToken, c.VaultMount, c.VaultPath)
		if err != nil {
			return nil, fmt.Errorf("%w: vault: %v", common.ErrConfiguration, err)
		}
		providers = append(providers, vp)
	}
	providers = append(providers, secrets.NewEnvProvider(".env"))
	return secrets.NewChain(logger, providers...), nil
}

type acquirer interface {
	Acquire(ctx context.Context) (*pool.Pool, error)
}

// acquireWithRetry retries transient failures with exponential backoff.
// Configuration and migration errors are returned at once.
func acquireWithRetry(ctx context.Context, a acquirer, retries int, logger logging.Logger) (*pool.Pool, error) {
	var p *pool.Pool
	backoff := retry.WithMaxRetries(uint64(max(retries, 0)), retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		p, err = a.Acquire(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrConfiguration) || errors.Is(err, common.ErrMigration) {
			return err
		}
		logger.Warn(ctx, "database not ready, retrying", "error", err)
		return retry.RetryableError(err)
	})
	return p, err
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

func (app *App) ping(ctx context.Context) error {
	p, err := app.pools.Acquire(ctx)
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

func (app *App) startGRPCServer(ctx context.Context) error {
	if err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.ping).Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, p *pool.Pool) error {
	h := httpapi.NewHandler(
		services.NewUserService(p.DB, app.repomanager, app.config),
		services.NewMessageService(p.DB, app.repomanager, app.config),
		services.NewImageService(p.DB, app.repomanager, app.config),
		app.files,
		app.ping,
		httpapi.Options{
			SessionValidity: app.config.SessionValidityDuration,
			MaxUploadSize:   app.config.MaxUploadSize,
			SecureCookie:    app.config.SecureCookie,
		},
		app.logger,
	)
	if err := httpapi.NewServer(app.config.EndpointAddrHTTP, h, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// runServers runs every server until ctx ends or one of them fails, which
// stops the others. The first failure is returned.
func runServers(ctx context.Context, servers ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range servers {
		g.Go(func() error { return run(ctx) })
	}
	return g.Wait()
}

// Run blocks until a signal arrives or a server fails. The schema is
// converged before any traffic is served.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	defer app.pools.Close()

	p, err := acquireWithRetry(ctx, app.pools, app.config.ConnectRetries, app.logger)
	if err != nil {
		app.logger.Error(ctx, "database unavailable", "error", err)
		return err
	}
	app.logger.Info(ctx, "Schema ready")

	return runServers(ctx,
		app.startGRPCServer,
		func(ctx context.Context) error { return app.startHTTPServer(ctx, p) },
	)
}
