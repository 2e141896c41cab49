package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/spotmap-go/internal/config"
	"github.com/jengzang/spotmap-go/internal/live"
	"github.com/jengzang/spotmap-go/internal/middleware"
	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/tracker"
)

// Québec City, used by the mock provider
var mockCenter = models.Coordinates{Latitude: 46.8139, Longitude: -71.2080}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Follow position and heading and serve them on a live websocket",
	Long: `Starts the configured position provider (nmea, mqtt or mock) and serves
the smoothed snapshot on ws://<live_addr>/ws and http://<live_addr>/snapshot
until interrupted.`,
	RunE: runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	provider, closeProvider := newProvider(cfg.Tracker)
	defer closeProvider()

	t := tracker.New(provider, logger)
	hub := live.NewHub(logger)
	t.OnUpdate(hub.Publish)

	srv := &http.Server{
		Addr:              cfg.Tracker.LiveAddr,
		Handler:           live.Router(hub, t, middleware.Logger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("live feed listening", zap.String("addr", srv.Addr), zap.String("provider", cfg.Tracker.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("live server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := t.Start(ctx)
		if errors.Is(err, tracker.ErrPermissionDenied) {
			// keep serving: clients see has_fix=false
			fmt.Fprintln(cmd.ErrOrStderr(), notice(err))
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newProvider builds the configured position source and its cleanup
func newProvider(cfg config.TrackerConfig) (tracker.Provider, func()) {
	switch cfg.Provider {
	case "nmea":
		p := tracker.NewNMEAProvider(cfg.SerialPort, cfg.BaudRate, logger)
		return p, func() { _ = p.Close() }
	case "mqtt":
		p := tracker.NewMQTTProvider(tracker.MQTTConfig{
			Broker:        cfg.MQTTBroker,
			ClientID:      cfg.MQTTClientID,
			TopicPosition: cfg.TopicPosition,
			TopicHeading:  cfg.TopicHeading,
		}, logger)
		return p, p.Close
	default:
		return tracker.NewMockProvider(mockCenter, time.Second), func() {}
	}
}
