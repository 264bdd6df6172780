package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vidseg/internal/acquire"
	"vidseg/internal/api"
	"vidseg/internal/config"
	"vidseg/internal/pipeline"
	"vidseg/internal/transcript"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput     bool
		refresh        bool
		stream         bool
		lang           string
		model          string
		transcriptFile string
		outputPath     string
	)

	cmd := &cobra.Command{
		Use:   "segments <video>",
		Short: "Classify a video into a labeled timeline",
		Long: "Acquire the transcript of a video (ID or URL), classify it with the generative\n" +
			"service and print the gap-free timeline. Results are stored and reused unless\n" +
			"--refresh is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := acquire.VideoID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := pipeline.Request{
				VideoID:  videoID,
				Language: strings.TrimSpace(lang),
				Refresh:  refresh,
				Model:    strings.TrimSpace(model),
				Stream:   stream || cfg.LLM.Stream,
			}
			if path := strings.TrimSpace(transcriptFile); path != "" {
				segs, err := loadTranscriptFile(path)
				if err != nil {
					return err
				}
				req.Transcript = segs
			}
			if req.Stream && !jsonOutput && stderrIsTerminal() {
				errOut := cmd.ErrOrStderr()
				req.OnChunk = func(_, accumulated string) {
					fmt.Fprintf(errOut, "\rreceiving model output: %d chars", len(accumulated))
				}
			}

			return ctx.withService(cmd, func(svc *pipeline.Service) error {
				res, err := svc.Analyze(cmd.Context(), req)
				if req.OnChunk != nil {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
				if err != nil {
					return err
				}
				doc := api.FromResult(res)
				if outputPath != "" {
					if err := writeJSONFile(outputPath, doc); err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, doc)
				}
				renderAnalysis(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the API response document instead of a table")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore stored transcripts and results")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream model output (progress is shown on a terminal)")
	cmd.Flags().StringVar(&lang, "lang", "", "Transcript language (default acquisition.language)")
	cmd.Flags().StringVar(&model, "model", "", "Use only this model")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "Classify a local caption file (XML, json3, WebVTT or SRT) instead of acquiring one")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also save the JSON document to this file")
	return cmd
}

func loadTranscriptFile(path string) (transcript.Transcript, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read transcript file: %w", err)
	}
	segs, err := transcript.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse transcript file %s: %w", expanded, err)
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("transcript file %s contains no lines", expanded)
	}
	return segs, nil
}
