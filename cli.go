package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mithaq/backend/matching"
)

var (
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "mithaq",
	Short: "Matching backend: compatibility, moderation and profile completeness",
	Long: `mithaq serves the matching API and exposes its scoring rules on the
command line.

  serve         run the HTTP + websocket server
  score         compare two profile documents
  moderate      run the moderation filter on text or a profile
  completeness  show which required fields a profile is missing
  seed          fill the database with sample users`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format (table, json)")
}

// readProfile decodes a profile document from path, or stdin for "-".
func readProfile(path string) (*matching.Profile, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p matching.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", path, err)
	}
	return &p, nil
}

func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
