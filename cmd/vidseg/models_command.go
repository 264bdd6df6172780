package main

import (
	"github.com/spf13/cobra"

	"vidseg/internal/api"
	"vidseg/internal/pipeline"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List generation models in fallback order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *pipeline.Service) error {
				candidates, order, err := svc.Models(cmd.Context(), refresh)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.FromModels(candidates, order))
				}
				renderModels(cmd.OutOrStdout(), candidates, order)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-list models from the generative service")
	return cmd
}
