// Command fileserver shares a directory with up to MaxClients TCP clients.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fileshare/server"
)

func main() {
	config, shouldExit, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		HandleStartupError(err, "parse command line arguments")
	}
	if shouldExit {
		return
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	srv, err := server.New(config, logger)
	if err != nil {
		HandleStartupError(err, "configure server")
	}
	PrintStartupInfo(logger, config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		HandleStartupError(err, "start server")
	}
	logger.Printf("Server stopped")
}
