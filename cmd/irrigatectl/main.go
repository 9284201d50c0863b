package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/irrigatectl/internal/api"
	"codeberg.org/mutker/irrigatectl/internal/config"
	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/metrics"
	"codeberg.org/mutker/irrigatectl/internal/pid"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"codeberg.org/mutker/irrigatectl/internal/sampler"
	"codeberg.org/mutker/irrigatectl/internal/sink"
	"codeberg.org/mutker/irrigatectl/internal/source"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Level(), logger.IsService())
	log.Debug().Msg("Config loaded")

	pidFile := pid.New(cfg.PIDDir)
	if err := pidFile.Write(); err != nil {
		log.ErrorWithCode(err).Msg("Failed to write PID file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()

	if rmErr := pidFile.Remove(); rmErr != nil {
		log.Warn().Err(rmErr).Msg("Failed to remove PID file")
	}
	if err != nil {
		log.ErrorWithCode(err).Msg("Dashboard stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Exiting...")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	ctrl := pump.New(log.With("pump"))
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close pump controller")
		}
	}()

	var client mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := source.Connect(ctx, cfg.MQTT.Config, log.With("mqtt"))
		if err != nil {
			return err
		}
		client = c
	}

	strategy, err := newStrategy(ctx, g, cfg, client, ctrl, log)
	if err != nil {
		return err
	}

	smp, err := sampler.New(strategy, sampler.NewIntervalScheduler(cfg.Interval), log.With("sampler"))
	if err != nil {
		return err
	}

	collector, err := metrics.NewService(cfg.Metrics, log.With("metrics"))
	if err != nil {
		return err
	}

	dashOpts := []dashboard.Option{
		dashboard.WithLogger(log.With("dashboard")),
		dashboard.WithObserver(collector),
	}
	if client != nil {
		pub := sink.NewPublisher(client, cfg.MQTT.CommandTopic, cfg.MQTT.QoS, log.With("sink"))
		dashOpts = append(dashOpts, dashboard.WithObserver(pub))
		g.Go(func() error { return pub.Run(ctx) })
	}

	dashCfg, err := cfg.Dashboard()
	if err != nil {
		return err
	}
	dash, err := dashboard.New(dashCfg, smp, ctrl, dashOpts...)
	if err != nil {
		return err
	}

	handlerOpts := []api.Option{api.WithHeartbeat(cfg.HTTP.Heartbeat)}
	if ext, ok := strategy.(*sampler.External); ok {
		handlerOpts = append(handlerOpts, api.WithBreaker(ext.BreakerState))
	}
	if collector.Enabled() {
		handlerOpts = append(handlerOpts, api.WithMetrics(cfg.Metrics.Path, collector.Handler()))
	}
	handler := api.NewHandler(dash, log.With("http"), handlerOpts...)
	server := api.NewServer(cfg.HTTP.Addr, handler.Router(), log.With("http"))

	g.Go(func() error { return dash.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	log.Info().
		Str("strategy", string(cfg.Strategy)).
		Dur("interval", cfg.Interval).
		Str("addr", cfg.HTTP.Addr).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("Irrigation dashboard started")

	<-ctx.Done()
	log.Info().Msg("Received termination signal.")

	return g.Wait()
}

func newStrategy(
	ctx context.Context, g *errgroup.Group, cfg *config.Config,
	client mqtt.Client, ctrl *pump.Controller, log logger.Logger,
) (sampler.Strategy, error) {
	switch cfg.Strategy {
	case sampler.KindExternal:
		if client == nil {
			return nil, errors.New().WithData(errors.ErrConfiguration, "strategy external needs mqtt.enabled")
		}
		sub := source.NewSubscriber(client, cfg.MQTT.Config, log.With("subscriber"))
		g.Go(func() error { return sub.Run(ctx) })
		return sampler.NewExternal(sub, cfg.External, log.With("external")), nil
	default:
		running := func() bool {
			state, err := ctrl.State()
			return err == nil && state.Running
		}
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		log.Debug().Uint64("seed", seed).Msg("Synthetic strategy seeded")
		return sampler.NewSynthetic(seed, running), nil
	}
}
