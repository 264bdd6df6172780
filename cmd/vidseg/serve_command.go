package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vidseg/internal/api"
	"vidseg/internal/logging"
	"vidseg/internal/pipeline"
)

const (
	lockFileName = "vidseg.lock"
	hubCapacity  = 1024
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.APIBind = bind
			}

			lock := flock.New(filepath.Join(cfg.Paths.StateDir, lockFileName))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another vidseg server is already using %s", cfg.Paths.StateDir)
			}
			defer func() { _ = lock.Unlock() }()

			hub := logging.NewStreamHub(hubCapacity)
			logger, err := logging.NewFromConfig(cfg, hub)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.PruneDailyLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, time.Now())
			if err := cfg.RequireLLM(); err != nil {
				logging.WarnWithContext(logger, "generative service not configured", "llm_unconfigured",
					logging.String(logging.FieldErrorHint, err.Error()),
					logging.String(logging.FieldImpact, "segment requests fail until an API key is set"),
				)
			}

			runCtx := cmd.Context()
			svc, err := pipeline.New(runCtx, cfg, logger)
			if err != nil {
				return fmt.Errorf("start pipeline: %w", err)
			}
			defer svc.Close()

			server, err := api.NewServer(api.Config{
				Bind:            cfg.Paths.APIBind,
				Token:           cfg.Paths.APIToken,
				Hub:             hub,
				DefaultLanguage: cfg.Acquisition.Language,
			}, svc, logger)
			if err != nil {
				return err
			}
			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

			<-runCtx.Done()
			server.Stop()
			logger.Info("vidseg server shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default paths.api_bind)")
	return cmd
}
