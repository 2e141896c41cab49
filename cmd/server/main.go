package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/api"
	"github.com/jengzang/spotmap-go/internal/auth"
	"github.com/jengzang/spotmap-go/internal/config"
	"github.com/jengzang/spotmap-go/internal/database"
	"github.com/jengzang/spotmap-go/internal/logging"
	"github.com/jengzang/spotmap-go/internal/middleware"
	"github.com/jengzang/spotmap-go/internal/repository"
	"github.com/jengzang/spotmap-go/internal/service"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "spotmap-server",
	Short: "Public spot and session backend for spotmap",
	Long: `Serves the public spot collection and email sessions.

Storage is SQLite by default; set db_driver: postgres (or DB_DRIVER=postgres
and DATABASE_URL) to use PostgreSQL.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	spots, users, closeDB, err := openRepositories(ctx, cfg.Server, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	issuer := auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTLDuration())
	router := api.SetupRouter(api.Deps{
		Spots:    service.NewSpotService(spots, users, logger),
		Sessions: service.NewSessionService(users, issuer, logger),
		Limiter:  middleware.NewRateLimiter(ctx, cfg.Server.RateLimit, cfg.Server.RateWindowDuration()),
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		// 启动服务器
		logger.Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("db_driver", cfg.Server.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (repository.SpotRepository, repository.UserRepository, func(), error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := database.OpenPostgres(ctx, database.PostgresConfig{DSN: cfg.DatabaseURL, Logger: logger})
		if err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return repository.NewGormSpotRepository(db), repository.NewGormUserRepository(db), closeDB, nil

	default:
		db, err := database.Open(database.Config{Path: cfg.DBPath, Logger: logger})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.Migrate(db, database.ServerMigrations, logger); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		closeDB := func() { db.Close() }
		return repository.NewSQLiteSpotRepository(db), repository.NewSQLiteUserRepository(db), closeDB, nil
	}
}
