package main

import (
	"github.com/spf13/cobra"

	"vidseg/internal/acquire"
	"vidseg/internal/api"
	"vidseg/internal/language"
	"vidseg/internal/pipeline"
)

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		lang       string
	)

	cmd := &cobra.Command{
		Use:   "transcript <video>",
		Short: "Fetch a video transcript without classifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := acquire.VideoID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			code := language.Normalize(lang)
			if code == "" {
				code = cfg.Acquisition.Language
			}
			return ctx.withService(cmd, func(svc *pipeline.Service) error {
				res, err := svc.Transcript(cmd.Context(), videoID, code)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.FromAcquisition(videoID, code, res))
				}
				renderTranscript(cmd.OutOrStdout(), videoID, code, res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	cmd.Flags().StringVar(&lang, "lang", "", "Transcript language (default acquisition.language)")
	return cmd
}
