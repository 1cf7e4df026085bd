package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veranoksenfeld/PolyBot-Pro/config"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/advisor"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/chain"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/notify"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/polymarket"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/proxyfetch"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/storage"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/detector"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/engine"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	target := flag.String("target", "", "wallet to mirror (overrides config)")
	simulate := flag.Bool("simulate", false, "force simulation mode")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	advice := flag.Bool("advice", false, "print a trade-history profile on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *target != "" {
		cfg.Mirror.Target = *target
	}
	if *simulate {
		cfg.Mirror.Simulate = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetch := proxyfetch.New()
	client := polymarket.NewClient(fetch, cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase, cfg.API.SubgraphURL)
	resolver := polymarket.NewResolver(client)
	catalog := polymarket.NewCatalog(client)
	aggregator := polymarket.NewAggregator(client, resolver, catalog)

	address, err := resolver.Resolve(ctx, cfg.Mirror.Target)
	if err != nil {
		slog.Error("could not resolve target wallet", "target", cfg.Mirror.Target, "err", err)
		os.Exit(1)
	}

	slog.Info("mirror starting",
		"target", cfg.Mirror.Target,
		"address", address,
		"mode", cfg.Mirror.MonitoringMode,
		"interval", cfg.TickInterval(),
		"multiplier", cfg.Mirror.CopyMultiplier,
		"simulate", cfg.Mirror.Simulate,
	)

	console := notify.NewConsole()

	var store ports.Storage
	if cfg.Storage.DSN != "" {
		sqlStore, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	var scanner ports.PendingScanner
	if cfg.Mode().Mempool() {
		chainScanner, err := chain.NewScanner(cfg.API.RPCURL, catalog)
		if err != nil {
			slog.Error("failed to connect to the chain node", "err", err, "rpc", cfg.API.RPCURL)
			os.Exit(1)
		}
		defer chainScanner.Close()
		scanner = chainScanner
	}

	executor := buildExecutor(cfg)

	if *advice {
		printAdvice(ctx, client, console, address, cfg.API.AdvisorURL)
	}

	det := detector.New(detector.Config{
		Mode:      cfg.Mode(),
		Target:    address,
		PollGrace: cfg.PollGrace(),
	}, scanner, client, catalog, console, slog.Default())

	eng := engine.New(engine.Config{
		Target:        address,
		OriginalInput: cfg.Mirror.Target,
		Interval:      cfg.TickInterval(),
		MinOrderUSD:   cfg.Mirror.MinOrderUSD,
		Simulate:      cfg.Mirror.Simulate,
	}, det, executor, aggregator, console, store, slog.Default())

	if positions, err := aggregator.FetchPositions(ctx, address, cfg.Mirror.Target); err == nil {
		console.RenderPositions(address, positions)
	} else {
		slog.Warn("could not load target positions", "err", err)
	}

	if err := eng.Start(ctx); err != nil {
		slog.Error("engine failed to start", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	eng.Stop()
	slog.Info("mirror stopped cleanly")
}

// buildExecutor wires either the simulated or the live order path. Live
// mode requires a valid signing key; config validation already enforced
// its presence.
func buildExecutor(cfg *config.Config) ports.OrderExecutor {
	if cfg.Mirror.Simulate {
		return polymarket.NewExecutor(nil, cfg.Mirror.CopyMultiplier, true)
	}

	auth, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.Mirror.PrivateKey)
	if err != nil {
		slog.Error("invalid signing key, check POLY_PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("live trading enabled", "address", auth.Address())
	return polymarket.NewExecutor(auth, cfg.Mirror.CopyMultiplier, false)
}

func printAdvice(ctx context.Context, client *polymarket.Client, console *notify.Console, address, advisorURL string) {
	fills, err := client.FetchFills(ctx, address, 50)
	if err != nil {
		slog.Warn("could not fetch trade history for advice", "err", err)
		return
	}
	adv, err := advisor.New(advisorURL).Summarize(ctx, fills)
	if err != nil {
		slog.Debug("advisor degraded to local summary", "err", err)
	}
	console.RenderAdvice(adv)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
