// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command libid identifies third-party libraries embedded in mobile app
// binaries by comparing obfuscation-resilient bytecode fingerprints
// against a corpus of known library profiles.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aleutian-labs/libid/internal/config"
)

// cfgPath holds the --config flag value, shared by every subcommand.
var cfgPath string

// cfg is loaded once in rootCmd's PersistentPreRunE and read by every
// subcommand's RunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "libid",
	Short:         "Identify third-party libraries embedded in mobile app binaries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a libid config YAML file (defaults used if absent)")
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("libid: fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
