// Command gbusiness activates provider keys and makes signed g_business API calls.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leelynne/gbusiness-httpsig/credstore"
	"github.com/leelynne/gbusiness-httpsig/httpclient"
	"github.com/leelynne/gbusiness-httpsig/internal/config"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/satispay"
	"github.com/leelynne/gbusiness-httpsig/session"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     session.Store
	sess      *session.Session
	transport httpclient.Client
	opts      satispay.Options
	registry  *prometheus.Registry
}

func (a *app) close() {
	_ = a.log.Sync()
	if c, ok := a.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func loadApp(ctx context.Context, configPath, envFile string) (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "gbusiness"})

	store, err := credstore.Open(credstore.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Passphrase: cfg.Store.Passphrase,
		RedisAddr:  cfg.Store.Redis.Addr,
		RedisDB:    cfg.Store.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	sess, err := session.Restore(ctx, store)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := httpclient.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		sess:      sess,
		transport: httpclient.NewTransport(&http.Client{}),
		registry:  registry,
		opts: satispay.Options{
			Logger:     log.With(logger.Component("provider")),
			LogOptions: httpclient.LogOptions{Redact: cfg.Log.Redact, MaxBody: cfg.Log.MaxBody},
			Metrics:    metrics,
			Timeout:    cfg.Timeout(),
			Endpoints:  cfg.Endpoints(),
		},
	}, nil
}

func main() {
	var configPath, envFile string

	root := &cobra.Command{
		Use:           "gbusiness",
		Short:         "Signed client for the Satispay g_business API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("GBUSINESS_CONFIG", "gbusiness.yaml"), "YAML config file (env GBUSINESS_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	load := func(cmd *cobra.Command) (*app, error) {
		return loadApp(cmd.Context(), configPath, envFile)
	}
	root.AddCommand(
		serveCmd(load),
		activateCmd(load),
		invokeCmd(load),
		proxyCmd(load),
		verifyCmd(load),
		credentialCmd(load),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type loader func(cmd *cobra.Command) (*app, error)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
