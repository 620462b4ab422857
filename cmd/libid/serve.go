// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleutian-labs/libid/internal/serverrt"
)

var (
	serveAddr     string
	serveLibDir   string
	serveWatch    bool
	serveScalable bool
	serveToolCmd  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP profiling/detection API",
	RunE:  runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to config's server.addr)")
	serveCmd.Flags().StringVar(&serveLibDir, "lib-dir", "", "directory of library profiles to serve detection against (defaults to config's detection.output_dir)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch --lib-dir and hot-reload the detection index on change")
	serveCmd.Flags().BoolVar(&serveScalable, "scalable", false, "run in Scalable mode instead of Accurate mode")
	serveCmd.Flags().StringVar(&serveToolCmd, "tool", "", "external dex/apk extractor command [default: libid-bytecode-extract]")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serverrt.Run(ctx, cfg, serverrt.Options{
		Addr:     serveAddr,
		LibDir:   serveLibDir,
		Watch:    serveWatch,
		Scalable: serveScalable,
		Parsers:  discoveryParsers(serveToolCmd),
	})
}
