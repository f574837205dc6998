package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/panecast"
	"pkt.systems/panecast/httpapi"
	"pkt.systems/panecast/internal/appconfig"
	"pkt.systems/panecast/internal/capture"
	"pkt.systems/panecast/internal/probe"
	"pkt.systems/panecast/internal/settings"
	"pkt.systems/panecast/internal/term"
	"pkt.systems/panecast/internal/worker"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the panecast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			channel, err := worker.New(toWorkerConfig(cfg.Worker), logger)
			if err != nil {
				return err
			}
			defer func() { _ = channel.Close() }()

			windowProbe := probe.NewWindowProbe(channel, time.Duration(cfg.Worker.CacheTTLSeconds)*time.Second, logger)
			injector, err := probe.NewInputInjector(probe.InjectorConfig{
				Binary: cfg.Input.Binary,
				Args:   cfg.Input.Args,
			}, channel, logger)
			if err != nil {
				return err
			}
			capturer, err := capture.NewCommand(capture.Config{
				Command:       cfg.Capture.Command,
				Args:          cfg.Capture.Args,
				LogicalWidth:  cfg.Capture.LogicalWidth,
				LogicalHeight: cfg.Capture.LogicalHeight,
			}, logger)
			if err != nil {
				return err
			}
			store, err := settings.NewStore(cfg.Settings.Path, logger)
			if err != nil {
				return err
			}

			server, err := panecast.New(panecast.ServerConfig{
				Engine: cfg.Engine.EngineSettings(),
				HTTP:   toHTTPConfig(cfg.HTTP),
				Terminal: term.Config{
					Shell: cfg.Terminal.Shell,
					Args:  cfg.Terminal.Args,
				},
			}, panecast.ServerDeps{
				Capturer: capturer,
				Probe:    windowProbe,
				Injector: injector,
				Settings: store,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := channel.Start(ctx); err != nil {
				return fmt.Errorf("worker start: %w", err)
			}
			go func() {
				if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("settings watch stopped", "err", err)
				}
			}()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", cfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func toWorkerConfig(cfg appconfig.WorkerConfig) worker.Config {
	return worker.Config{
		Binary:       cfg.Binary,
		Args:         cfg.Args,
		CallTimeout:  time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		RespawnDelay: time.Duration(cfg.RespawnDelaySeconds) * time.Second,
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:              cfg.Addr,
		BasePath:          cfg.BasePath,
		InactivityTimeout: time.Duration(cfg.InactivityTimeoutMinutes) * time.Minute,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		PingInterval:      time.Duration(cfg.PingIntervalSeconds) * time.Second,
		ReadLimitBytes:    cfg.ReadLimitBytes,
	}
}
