package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	sqliteadapter "github.com/atvirokodosprendimai/magsav/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/magsav/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/magsav/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to magsav.yaml"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Usage: "initial admin password when users are empty"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadServerConfig(c.String("config"))
			if err != nil {
				return err
			}
			overrideString(&cfg.Server.Addr, c.String("addr"))
			overrideString(&cfg.Server.RPCSocket, c.String("rpc-socket"))
			overrideString(&cfg.Database.Path, c.String("db-path"))
			overrideString(&cfg.Bootstrap.AdminEmail, c.String("bootstrap-admin-email"))
			overrideString(&cfg.Bootstrap.AdminPassword, c.String("bootstrap-admin-password"))
			overrideString(&cfg.Log.Level, c.String("log-level"))
			return runServer(ctx, cfg)
		},
	}
}

func loadServerConfig(path string) (*config.Config, error) {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()
	return config.Load(path)
}

func overrideString(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg := zap.NewDevelopmentConfig()
	if strings.EqualFold(cfg.Format, "json") {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func buildServices(db *gorm.DB, cfg *config.Config, log *zap.Logger) application.Services {
	uow := sqliteadapter.NewUnitOfWork(db)
	repos := uow.Repositories()
	access := application.NewAccessService(sqliteadapter.NewAccessRepository(db), log.Named("access"))
	provisioner := application.NewProvisioner(application.NewUIDGenerator(cfg.UID.MaxAttempts))
	return application.Services{
		Access:        access,
		Products:      application.NewProductService(uow, provisioner),
		Requests:      application.NewRequestService(repos.Requests, repos.Products),
		Lifecycle:     application.NewLifecycleService(uow, provisioner, application.NewOpener(), access, log.Named("lifecycle")),
		Interventions: application.NewInterventionService(repos.Interventions),
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := sqliteadapter.Open(cfg.Database.Path, cfg.Database.BusyTimeout())
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	applied, err := sqliteadapter.RunMigrations(ctx, db)
	if err != nil {
		return err
	}
	log.Info("database ready", zap.String("path", cfg.Database.Path), zap.Int64s("migrations", applied))

	svc := buildServices(db, cfg, log)
	if err := svc.Access.Bootstrap(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}

	router := httpadapter.NewRouter(svc, log.Named("http"), cfg.Auth.SessionTTL)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout}
	rpcSrv, err := rpcadapter.Start(cfg.Server.RPCSocket, svc, log.Named("rpc"))
	if err != nil {
		return err
	}
	log.Info("json-rpc listening", zap.String("socket", cfg.Server.RPCSocket))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := rpcSrv.Close(); err != nil {
			log.Warn("close rpc server", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
