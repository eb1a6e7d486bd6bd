// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zthompson47/time2freq/cmd"
	applog "github.com/zthompson47/time2freq/internal/log"
	"github.com/zthompson47/time2freq/pkg/build"
)

// main wires build information and signal handling around the CLI. The
// audio subsystem is initialized by the commands that need it, so version
// and help work without a sound card.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		applog.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
