package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collate/internal/cli"
	"collate/internal/cluster"
	"collate/internal/config"
	"collate/internal/db"
	"collate/internal/httpapi"
	"collate/internal/ingest"
	"collate/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (overrides COLLATE_HTTP_HOST)")
	port := fs.Int("port", 0, "HTTP port (overrides COLLATE_HTTP_PORT)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	bindHost := cfg.HTTPHost
	if *host != "" {
		bindHost = *host
	}
	bindPort := cfg.HTTPPort
	if *port != 0 {
		bindPort = *port
	}
	if bindPort <= 0 || bindPort > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := httpapi.EnsureDefaultAdmin(dbCtx, pool, logger, cfg.DefaultAdminUser, cfg.DefaultAdminPassword); err != nil {
		logger.Error().Err(err).Msg("default admin bootstrap failed")
		fmt.Fprintf(os.Stderr, "Failed to bootstrap default admin: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(
		pool,
		cluster.NewService(pool, logger),
		ingest.NewService(pool, logger),
		logger,
		httpapi.Options{
			Host:            bindHost,
			Port:            bindPort,
			ReadTimeout:     *readTimeout,
			WriteTimeout:    *writeTimeout,
			ShutdownTimeout: *shutdownTimeout,
			SessionTTL:      time.Duration(cfg.SessionTTLHours) * time.Hour,
			SessionCookie:   cfg.SessionCookieName,
			SessionSecure:   cfg.SessionCookieSecure,
			AllowedOrigins:  cfg.CORSAllowedOriginsList(),
		},
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", bindHost).Int("port", bindPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
