// Command tavola migrates, seeds and queries the restaurant reservation tables.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/coregx/tavola/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
