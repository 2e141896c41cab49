package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/config"
	"github.com/jengzang/spotmap-go/internal/database"
	"github.com/jengzang/spotmap-go/internal/kvstore"
	"github.com/jengzang/spotmap-go/internal/logging"
	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/remote"
	"github.com/jengzang/spotmap-go/internal/spotstore"
	"github.com/jengzang/spotmap-go/internal/tracker"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spotmap",
	Short: "Record private spots and browse public ones",
	Long: `spotmap keeps your private spots on this device and shares public
spots through the spotmap backend. Sign in with 'spotmap login' before
publishing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Development = true
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(spotsCmd, loginCmd, logoutCmd, whoamiCmd, trackCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, notice(err))
		os.Exit(1)
	}
}

// notice turns a failure into the message shown to the user
func notice(err error) string {
	switch {
	case errors.Is(err, spotstore.ErrAuthRequired):
		return "Sign in to publish a public spot: spotmap login --email you@example.com"
	case errors.Is(err, spotstore.ErrRemoteWriteFailed):
		return "Could not reach the spot server, nothing was published. " + err.Error()
	case errors.Is(err, spotstore.ErrRemoteReadFailed):
		return "Could not load public spots from the server. " + err.Error()
	case errors.Is(err, spotstore.ErrLocalWriteFailed):
		return "Could not save on this device, your spots are unchanged. " + err.Error()
	case errors.Is(err, spotstore.ErrIndexOutOfRange):
		return "No such spot. Run 'spotmap spots list' to see the numbers."
	case errors.Is(err, tracker.ErrPermissionDenied):
		return "Location is unavailable: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

// app wires the device-side stack
type app struct {
	kv      *kvstore.SQLiteStore
	remote  *remote.Client
	session *spotstore.Session
	store   *spotstore.Store
}

// openApp opens local storage and restores the cached session. An
// unreachable backend leaves the user signed out for this run.
func openApp(ctx context.Context) (*app, error) {
	kv, err := kvstore.OpenSQLite(database.Config{Path: cfg.Client.LocalDBPath, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open device storage: %w", err)
	}

	client := remote.NewClient(cfg.Client.RemoteURL, nil, logger)
	opts := spotstore.Options{
		Locale:        models.Locale(cfg.Client.Locale),
		RemoteTimeout: cfg.Client.RemoteTimeoutDuration(),
		LocalTimeout:  cfg.Client.LocalTimeoutDuration(),
		Logger:        logger,
	}

	a := &app{
		kv:      kv,
		remote:  client,
		session: spotstore.NewSession(kv, client, opts),
		store:   spotstore.New(kv, client, opts),
	}
	if _, err := a.session.Restore(ctx); err != nil {
		logger.Warn("session not restored", zap.Error(err))
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		logger.Warn("failed to close device storage", zap.Error(err))
	}
}
