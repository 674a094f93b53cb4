package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scancart/internal/api"
	"scancart/internal/kiosk"
	"scancart/internal/logging"
	"scancart/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the kiosk: camera scanner, cart, checkout, and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(cmd.Context(), ctx)
		},
	}
}

func runKiosk(parent context.Context, ctx *commandContext) error {
	if parent == nil {
		parent = context.Background()
	}
	signalCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	now := time.Now()
	archived, rotateErr := logging.RotateLogFile(cfg.Paths.LogDir, now)
	hub := logging.NewStreamHub(4096)
	logger, err := logging.NewFromConfig(cfg, hub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if rotateErr != nil {
		logger.Warn("previous log not archived", logging.Error(rotateErr))
	} else if archived != "" {
		logger.Debug("previous log archived", logging.String("path", archived))
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, now)

	for _, r := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run `scancart doctor` for details"),
		)
	}

	k, err := kiosk.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create kiosk: %w", err)
	}
	defer k.Close()

	if err := k.Start(signalCtx); err != nil {
		return err
	}

	server := api.NewServer(cfg, k, hub, logger)
	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()
		server.Stop()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		k.Stop()
		return nil
	})

	err = group.Wait()
	logger.Info("scancart shutting down", logging.String(logging.FieldEventType, "kiosk_shutdown"))
	return err
}
