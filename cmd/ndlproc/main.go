package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ndlproc/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ndlproc:", err)
	}
	stop()
	os.Exit(res.ExitCode)
}
