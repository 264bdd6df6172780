package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vidseg/internal/config"
	"vidseg/internal/fileutil"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONFile saves v as indented JSON, replacing path atomically.
func writeJSONFile(path string, v any) error {
	target, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", target, err)
	}
	if err := fileutil.WriteFileAtomic(target, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", target, err)
	}
	return nil
}
