package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vidseg/internal/config"
	"vidseg/internal/logging"
	"vidseg/internal/pipeline"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// consoleLogger logs to stderr only. One-shot commands leave the daily file
// to the long-running server.
func (c *commandContext) consoleLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Color:  stderrIsTerminal() && os.Getenv("NO_COLOR") == "",
	})
}

// openService builds the pipeline for a single command invocation.
func (c *commandContext) openService(ctx context.Context, logger *slog.Logger) (*pipeline.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	svc, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}
	return svc, nil
}

// withService runs fn against a freshly opened pipeline and closes it after.
func (c *commandContext) withService(cmd *cobra.Command, fn func(*pipeline.Service) error) error {
	logger, err := c.consoleLogger()
	if err != nil {
		return err
	}
	svc, err := c.openService(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
