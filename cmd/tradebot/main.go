package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tradebot/internal/config"
	"github.com/sawpanic/tradebot/internal/httpapi"
	tradebotlog "github.com/sawpanic/tradebot/internal/log"
	"github.com/sawpanic/tradebot/internal/strategy"
	"github.com/sawpanic/tradebot/internal/strategy/arbitrage"
	"github.com/sawpanic/tradebot/internal/strategy/grid"
	strategyregistry "github.com/sawpanic/tradebot/internal/strategy/registry"
	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venue/breaker"
	"github.com/sawpanic/tradebot/internal/venue/genericx"
	"github.com/sawpanic/tradebot/internal/venue/kraken"
	venueregistry "github.com/sawpanic/tradebot/internal/venue/registry"
	"github.com/sawpanic/tradebot/internal/venue/ratelimit"
	"github.com/sawpanic/tradebot/internal/venue/tradeogre"
)

const (
	appName = "tradebot"
	version = "v0.1.0"
)

func main() {
	log.Logger = tradebotlog.Setup("info")

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-venue crypto trading bot core",
		Version: version,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the persisted bot configuration")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _ := cmd.Flags().GetString("host")
			port, _ := cmd.Flags().GetInt("port")
			return runServe(configPath, host, port)
		},
	}
	serveCmd.Flags().String("host", "127.0.0.1", "control plane bind host")
	serveCmd.Flags().Int("port", 8090, "control plane bind port")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Headless mode: initialize venues and run the configured active strategy until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(configPath)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// bootstrap wires the venue registry, strategy registry and config store
// shared by both serve and run modes, ground on teacher's cmd/cryptorun
// bootstrap sequence (load config, build registries, wire adapters).
func bootstrap(configPath string) (*config.Store, *config.BotConfig, *venueregistry.Registry, *strategyregistry.Registry, error) {
	store, err := config.NewStore(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init config store: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	limiters := ratelimit.NewManager()
	breakers := breaker.NewManager()

	venues := venueregistry.New(log.Logger)
	for _, v := range cfg.Venues {
		if !v.Enabled {
			continue
		}
		vc := v.ToVenueConfig()
		adapter, err := buildAdapter(vc, limiters, breakers)
		if err != nil {
			log.Warn().Err(err).Str("venue_id", v.VenueID).Msg("skipping venue: no adapter available")
			continue
		}
		venues.Add(vc, adapter)
	}

	maxOrderAge := time.Duration(cfg.GlobalSettings.MaxOrderAgeSeconds) * time.Second

	strategies := strategyregistry.New(log.Logger)
	strategies.Register(arbitrage.Descriptor(), func(params map[string]any) (strategy.Strategy, error) {
		p, err := arbitrage.New(params)
		if err != nil {
			return nil, strategy.ConstructionError(arbitrage.StrategyID, "%v", err)
		}
		return arbitrage.NewStrategy(p, venues, log.Logger, maxOrderAge), nil
	})
	strategies.Register(grid.Descriptor(), func(params map[string]any) (strategy.Strategy, error) {
		p, err := grid.New(params)
		if err != nil {
			return nil, strategy.ConstructionError(grid.StrategyID, "%v", err)
		}
		return grid.NewStrategy(p, venues, log.Logger), nil
	})

	return store, cfg, venues, strategies, nil
}

// buildAdapter is the venue_id -> adapter implementation table referenced
// by spec section 4.2 ("fails if no adapter implementation exists for
// config.venue_id"). kraken and tradeogre have dedicated implementations;
// any other venue_id fails at registration time. Keep this switch's case
// list in sync with venue.ImplementedVenueIDs, which the control plane's
// supported-exchanges endpoint reports from.
func buildAdapter(cfg venue.Config, limiters *ratelimit.Manager, breakers *breaker.Manager) (venue.Adapter, error) {
	switch cfg.VenueID {
	case "kraken":
		return genericx.New(kraken.New(), cfg, limiters, breakers.Get(cfg.VenueID)), nil
	case "tradeogre":
		return tradeogre.New(cfg, limiters, breakers.Get(cfg.VenueID)), nil
	default:
		return nil, fmt.Errorf("no adapter implementation for venue %q", cfg.VenueID)
	}
}

func runServe(configPath, host string, port int) error {
	store, _, venues, strategies, err := bootstrap(configPath)
	if err != nil {
		return err
	}

	limiters := ratelimit.NewManager()
	breakers := breaker.NewManager()
	venueFactory := func(cfg venue.Config) (venue.Adapter, error) {
		return buildAdapter(cfg, limiters, breakers)
	}

	srvCfg := httpapi.DefaultServerConfig()
	srvCfg.Host = host
	srvCfg.Port = port

	server, err := httpapi.New(srvCfg, venues, strategies, store, venueFactory, log.Logger)
	if err != nil {
		return fmt.Errorf("start control plane: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func runHeadless(configPath string) error {
	_, cfg, _, strategies, err := bootstrap(configPath)
	if err != nil {
		return err
	}

	if cfg.ActiveStrategy == "" {
		log.Warn().Msg("no active strategy configured; idling until signalled")
	} else {
		if err := strategies.SetActive(context.Background(), cfg.ActiveStrategy, cfg.StrategyParams); err != nil {
			return fmt.Errorf("activate strategy %q: %w", cfg.ActiveStrategy, err)
		}
		if err := strategies.StartActive(); err != nil {
			return fmt.Errorf("start strategy %q: %w", cfg.ActiveStrategy, err)
		}
		log.Info().Str("strategy_id", cfg.ActiveStrategy).Msg("strategy started")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received")
	if cfg.ActiveStrategy != "" {
		if err := strategies.StopActive(); err != nil {
			log.Warn().Err(err).Msg("failed to stop active strategy cleanly")
		}
	}
	return nil
}
