package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"scavenger/config"
	"scavenger/core"
	"scavenger/core/genesis"
	"scavenger/observability/logging"
	"scavenger/observability/otel"
	"scavenger/rpc"
	"scavenger/storage"
	"scavenger/storage/eventlog"
)

const (
	genesisPathEnv = "SCAVENGER_GENESIS"
	serviceName    = "scavengerd"

	archiveQueueSize = 1024
	shutdownTimeout  = 15 * time.Second
)

type envLookupFunc func(string) (string, bool)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		var code int
		switch args[0] {
		case "export-events":
			code = runExportEvents(args[1:], os.Stdout, os.Stderr)
		case "admin-token":
			code = runAdminToken(args[1:], os.Stdout, os.Stderr)
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
			code = 2
		}
		os.Exit(code)
	}
	if err := runNode(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(args []string) error {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := fs.String("genesis", "", "Path to a genesis spec (overrides SCAVENGER_GENESIS and config GenesisFile)")
	allowMigrateFlag := fs.Bool("allow-migrate", false, "Allow starting with a mismatched state schema")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(serviceName, cfg.Environment, cfg.Logging.Options())
	logger.Info("config loaded",
		slog.String("network", cfg.NetworkName),
		slog.String("data_dir", cfg.DataDir),
		slog.String("eventlog_driver", cfg.EventLog.Driver),
		logging.MaskDSN("eventlog_dsn", cfg.EventLog.DSN),
		slog.String("redis_addr", cfg.Redis.Addr),
		logging.MaskField("redis_password", cfg.Redis.Password),
		slog.Bool("admin_auth", cfg.RPC.AdminSecret != ""))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, cfg.Telemetry.OTel(cfg.Environment, cfg.NetworkName))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	var spec *genesis.GenesisSpec
	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath != "" {
		spec, err = genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis spec: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runtime, err := core.NewRuntime(db, core.Options{
		Genesis:      spec,
		Quota:        cfg.Quota.Limits(),
		AllowMigrate: cfg.AllowMigrate || *allowMigrateFlag,
		Logger:       logger,
	})
	if err != nil {
		if errors.Is(err, core.ErrNoGenesis) {
			return fmt.Errorf("empty database: supply a genesis spec via --genesis, %s, or config", genesisPathEnv)
		}
		return fmt.Errorf("start runtime: %w", err)
	}
	root, height := runtime.Head()
	logger.Info("runtime ready",
		slog.String("chain_id", runtime.ChainID()),
		slog.Uint64("height", height),
		slog.String("root", root.Hex()))

	archive, closeArchive, err := startArchive(ctx, cfg, runtime, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	server := rpc.NewServer(runtime, archive, rpc.Config{
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		AdminSecret:        cfg.RPC.AdminSecret,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	return nil
}

// startArchive wires the SQL event store and Redis stream behind an Archiver
// fed by committed receipts. The returned archive is nil when the event store
// is disabled.
func startArchive(ctx context.Context, cfg *config.Config, runtime *core.Runtime, logger *slog.Logger) (rpc.EventArchive, func(), error) {
	var (
		store     *eventlog.Store
		publisher *eventlog.StreamPublisher
		err       error
	)
	driver := strings.ToLower(strings.TrimSpace(cfg.EventLog.Driver))
	if driver != "" && driver != "none" {
		store, err = eventlog.Open(driver, cfg.EventLog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open event store: %w", err)
		}
	}
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		publisher, err = eventlog.NewStreamPublisher(pingCtx, eventlog.StreamOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
			MaxLen:   cfg.Redis.MaxLen,
		})
		cancel()
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("publishing events to redis", slog.String("stream", publisher.Stream()))
	}
	if store == nil && publisher == nil {
		return nil, func() {}, nil
	}

	var appender eventlog.Appender
	if store != nil {
		appender = store
	}
	var pub eventlog.Publisher
	if publisher != nil {
		pub = publisher
	}
	archiver := eventlog.NewArchiver(appender, pub, archiveQueueSize, logger)
	go archiver.Run(context.Background())
	runtime.SubscribeReceipts(archiver)

	closeFn := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := archiver.Close(drainCtx); err != nil {
			logger.Warn("event archive drain", slog.Any("error", err))
		}
		if dropped := archiver.Dropped(); dropped > 0 {
			logger.Warn("receipts dropped by event archive", slog.Uint64("dropped", dropped))
		}
		if publisher != nil {
			publisher.Close()
		}
		if store != nil {
			store.Close()
		}
	}
	if store == nil {
		return nil, closeFn, nil
	}
	return store, closeFn, nil
}

func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}
