package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx); err != nil {
		if ctx.Err() != nil {
			warnColor.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		log.Error(err)
		os.Exit(1)
	}
}
