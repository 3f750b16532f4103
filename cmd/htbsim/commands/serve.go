package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/htbsim/htbsim/internal/adminserver"
	"github.com/htbsim/htbsim/internal/api"
	"github.com/htbsim/htbsim/internal/config"
	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulation API and admin endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := buildStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}

		publisher, err := buildPublisher()
		if err != nil {
			return fmt.Errorf("building event publisher: %w", err)
		}
		defer publisher.Close()

		apiSrv := api.NewServer(api.Config{
			JWTSecret:       cfg.JWTSecret,
			AdminAPIKeyHash: cfg.AdminAPIKeyHash,
			AdminTOTPSecret: cfg.AdminTOTP,
			CORSOrigins:     cfg.CORSOrigins,
		}, st, publisher, logr)

		adminHandler := adminserver.NewHandler(logr, func(ctx context.Context) error {
			_, _, err := st.GetRun(ctx, "__readyz_probe__")
			return err
		}, apiSrv.MetricsGatherer())

		config.WatchReload(vpr, func(reloaded config.Config) {
			logr.Sugar().Infow("config changed, applying reloadable settings", "log_level", reloaded.LogLevel)
			apiSrv.SetAdminTOTPSecret(reloaded.AdminTOTP)
			_ = logr.SetLevel(reloaded.LogLevel)
		})

		httpSrv := &http.Server{Addr: cfg.APIAddr, Handler: apiSrv.Handler()}
		adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: adminHandler.Router()}

		errCh := make(chan error, 2)
		go func() { errCh <- httpSrv.ListenAndServe() }()
		go func() { errCh <- adminSrv.ListenAndServe() }()
		logr.Sugar().Infow("htbsim serving", "api_addr", cfg.APIAddr, "admin_addr", cfg.AdminAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-sigCh:
			logr.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(ctx)
			_ = adminSrv.Shutdown(ctx)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("api-addr", "", "address for the public API server")
	serveCmd.Flags().String("admin-addr", "", "address for the healthz/readyz/metrics server")
	serveCmd.Flags().String("admin-api-key-hash", "", "bcrypt hash of the admin API key required by DELETE /v1/simulations/:id")
	_ = vpr.BindPFlag("api_addr", serveCmd.Flags().Lookup("api-addr"))
	_ = vpr.BindPFlag("admin_addr", serveCmd.Flags().Lookup("admin-addr"))
	_ = vpr.BindPFlag("admin_api_key_hash", serveCmd.Flags().Lookup("admin-api-key-hash"))
}

func buildStore(ctx context.Context) (store.Store, error) {
	if cfg.PostgresDSN == "" {
		return store.NewMemoryStore(), nil
	}

	pg, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	var cache *store.RedisCache
	if cfg.RedisAddr != "" {
		cache, err = store.NewRedisCache(ctx, cfg.RedisAddr, 10*time.Minute)
		if err != nil {
			return nil, err
		}
	}
	return store.NewCached(pg, cache), nil
}

func buildPublisher() (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}

	runPub, err := events.NewRunPublisher(cfg.KafkaBrokers, cfg.RunEventsTopic)
	if err != nil {
		return nil, err
	}
	tickPub := events.NewTickPublisher(cfg.KafkaBrokers, cfg.TickTopic)
	return &events.Composite{Ticks: tickPub, Runs: runPub}, nil
}
