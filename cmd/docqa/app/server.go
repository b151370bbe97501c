// Package app provides the docqa server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/docqa/cmd/docqa/app/options"
	ragsvc "github.com/kart-io/docqa/internal/rag"
	"github.com/kart-io/docqa/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `docqa answers questions about uploaded documents.

Documents (PDF, DOCX, XLSX, CSV, text, HTML and images via OCR) are parsed,
chunked, embedded and stored in a vector index. Questions are answered by a
chat model grounded on the retrieved chunks, with numbered source citations.

Configuration is read from docqa.yaml, DOCQA_* environment variables and flags.`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Document question answering service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
