package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/panecast/internal/appconfig"
	"pkt.systems/panecast/internal/capture"
	"pkt.systems/panecast/internal/probe"
	"pkt.systems/panecast/internal/settings"
	"pkt.systems/panecast/internal/worker"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run panecast diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			if _, err := exec.LookPath(cfg.Capture.Command); err != nil {
				return fmt.Errorf("doctor capture command: %w", err)
			}
			logger.Info("doctor capture command found", "command", cfg.Capture.Command)

			capturer, err := capture.NewCommand(capture.Config{
				Command:       cfg.Capture.Command,
				Args:          cfg.Capture.Args,
				LogicalWidth:  cfg.Capture.LogicalWidth,
				LogicalHeight: cfg.Capture.LogicalHeight,
			}, logger)
			if err != nil {
				return err
			}
			captureCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			img, err := capturer.Capture(captureCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("doctor capture: %w", err)
			}
			bounds := img.Bounds()
			logger.Info("doctor capture ok", "width", bounds.Dx(), "height", bounds.Dy())

			if _, err := exec.LookPath(cfg.Worker.Binary); err != nil {
				return fmt.Errorf("doctor worker binary: %w", err)
			}
			channel, err := worker.New(toWorkerConfig(cfg.Worker), logger)
			if err != nil {
				return err
			}
			defer func() { _ = channel.Close() }()
			if err := channel.Start(cmd.Context()); err != nil {
				return fmt.Errorf("doctor worker start: %w", err)
			}

			windowProbe := probe.NewWindowProbe(channel, time.Duration(cfg.Worker.CacheTTLSeconds)*time.Second, logger)
			probeCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			rect, found, err := windowProbe.ActiveWindow(probeCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("doctor worker probe: %w", err)
			}
			if found {
				logger.Info("doctor worker ok", "active_window", rect)
			} else {
				logger.Info("doctor worker ok", "active_window", "none")
			}

			if _, err := exec.LookPath(cfg.Input.Binary); err != nil {
				return fmt.Errorf("doctor input binary: %w", err)
			}
			logger.Info("doctor input binary found", "binary", cfg.Input.Binary)

			if _, err := settings.NewStore(cfg.Settings.Path, logger); err != nil {
				return fmt.Errorf("doctor settings store: %w", err)
			}
			logger.Info("doctor settings ok", "path", cfg.Settings.Path)

			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for each diagnostic step")
	return cmd
}
