package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vidseg/internal/logging"
	"vidseg/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		lines     int
		videoID   string
		component string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display server logs",
		Long: "Display log events from a running `vidseg serve`, or from today's\n" +
			"log file when no server answers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("log API address: %w", err)
			}

			out := cmd.OutOrStdout()
			printed := false
			reader := logs.Reader{Client: client, LogDir: cfg.Paths.LogDir}
			_, err = reader.Read(cmd.Context(), logs.Query{
				Lines:     max(lines, 0),
				Follow:    follow,
				VideoID:   strings.TrimSpace(videoID),
				Component: strings.TrimSpace(component),
			}, func(evt logging.LogEvent) {
				printed = true
				fmt.Fprintln(out, formatLogEvent(evt))
			})
			if err != nil {
				return fmt.Errorf("read logs: %w", err)
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&videoID, "video", "", "Only show events for this video id")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	var b strings.Builder
	writeLogEvent(&b, evt)
	return b.String()
}

func writeLogEvent(w io.StringWriter, evt logging.LogEvent) {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	ts := "-"
	if !evt.Timestamp.IsZero() {
		ts = evt.Timestamp.Local().Format("2006-01-02 15:04:05")
	}
	_, _ = w.WriteString(ts + " " + level)
	if component := strings.TrimSpace(evt.Component); component != "" {
		_, _ = w.WriteString(" [" + component + "]")
	}
	if id := strings.TrimSpace(evt.VideoID); id != "" {
		_, _ = w.WriteString(" " + id)
	}
	if msg := strings.TrimSpace(evt.Message); msg != "" {
		_, _ = w.WriteString(" - " + msg)
	}
	if len(evt.Fields) == 0 {
		return
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		if key == logging.FieldSessionID {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := strings.TrimSpace(evt.Fields[key]); value != "" {
			_, _ = w.WriteString("\n    - " + key + ": " + value)
		}
	}
}
