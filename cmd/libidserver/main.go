// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command libidserver is a standalone deployment of the libid HTTP API,
// configured entirely by flags and a config file rather than cobra
// subcommands, the shape a container orchestrator or systemd unit expects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aleutian-labs/libid/internal/config"
	"github.com/aleutian-labs/libid/internal/serverrt"
)

func main() {
	cfgPath := flag.String("config", "", "path to a libid config YAML file (defaults used if absent)")
	addr := flag.String("addr", "", "listen address (defaults to config's server.addr)")
	libDir := flag.String("lib-dir", "", "directory of library profiles to serve detection against")
	watch := flag.Bool("watch", true, "watch --lib-dir and hot-reload the detection index on change")
	scalable := flag.Bool("scalable", false, "run in Scalable mode instead of Accurate mode")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("libidserver: loading config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serverrt.Run(ctx, cfg, serverrt.Options{
		Addr:     *addr,
		LibDir:   *libDir,
		Watch:    *watch,
		Scalable: *scalable,
	}); err != nil {
		slog.Error("libidserver: fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "libidserver: shut down cleanly")
}
