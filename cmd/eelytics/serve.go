package eelytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/eelytics/pkg/api"
	"github.com/edgeflare/eelytics/pkg/bridge"
	"github.com/edgeflare/eelytics/pkg/httputil"
	mw "github.com/edgeflare/eelytics/pkg/httputil/middleware"
	"github.com/edgeflare/eelytics/pkg/metrics"
	"github.com/edgeflare/eelytics/pkg/mqtt"
	pg "github.com/edgeflare/eelytics/pkg/pgx"
	"github.com/edgeflare/eelytics/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mqttQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
const mqttQuiesce = 250

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the MQTT bridge and the HTTP API",
	RunE:    runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("http.listenAddr", "l", "", "HTTP API listen address")
	f.StringSlice("mqtt.servers", nil, "MQTT broker URLs")
	f.String("mqtt.clientID", "", "MQTT client id")
	f.Bool("metrics.enabled", true, "Serve Prometheus metrics")
	f.String("metrics.addr", "", "Prometheus metrics listen address")
	f.Bool("migrate", false, "Create the readings table before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{
			Logger: logger.Named("metrics"),
			Addr:   cfg.Metrics.Addr,
		})
	}

	pool, err := pg.NewPool(ctx, cfg.Postgres.ConnString, pg.WithMaxConns(cfg.Postgres.MaxConns))
	if err != nil {
		return err
	}
	defer pool.Close()

	// keep serving when the database is down so the health endpoint can report it
	if err := pg.WaitReady(ctx, pool, cfg.Postgres.ReadyTimeout); err != nil {
		logger.Warn("database not reachable, continuing", zap.Error(err))
	}

	readings := store.New(pool)
	if migrateFirst, _ := cmd.Flags().GetBool("migrate"); migrateFirst {
		migrate(ctx, readings)
	}

	client, err := mqtt.NewClient(cfg.MQTT, logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	br := bridge.New(client, readings,
		bridge.WithLogger(logger.Named("bridge")),
		bridge.WithQoS(cfg.MQTT.QoS),
	)
	client.Register(br)

	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.MQTT.ConnectTimeout+time.Second)
	if err := client.Connect(connectCtx); err != nil {
		logger.Warn("broker not reachable yet, retrying in background", zap.Error(err))
	}
	cancelConnect()
	defer client.Disconnect(mqttQuiesce)

	routerOpts := []httputil.RouterOptions{
		httputil.WithLogger(logger.Named("http")),
		httputil.WithServerOptions(func(s *http.Server) {
			s.ReadHeaderTimeout = cfg.HTTP.ReadHeaderTimeout
		}),
	}
	if cfg.HTTP.TLS.Enabled {
		tlsConfig, err := httputil.NewTLSConfig(cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile, "localhost", "127.0.0.1")
		if err != nil {
			return fmt.Errorf("http tls: %w", err)
		}
		routerOpts = append(routerOpts, httputil.WithTLSConfig(tlsConfig))
	}
	router := httputil.NewRouter(routerOpts...)
	router.Use(
		mw.RequestID,
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger.Named("access")}),
		mw.CORSWithOptions(nil),
	)
	api.NewHandlers(readings, br, logger.Named("api")).Register(router)

	errChan := make(chan error, 1)
	go func() {
		if err := router.ListenAndServe(cfg.HTTP.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received termination signal, shutting down")
	case err = <-errChan:
		logger.Error("http server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if shutdownErr := router.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("http server shutdown", zap.Error(shutdownErr))
	}

	wg.Wait()
	return err
}
