package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/serve"
)

var serveCacheSize int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming merge server",
	Long: `Run annomerge as a long-lived server that accepts merge and parse
requests via stdin and writes responses to stdout using NDJSON format.

Parsed files are cached by content for the lifetime of the process.
The server runs until stdin closes, a close request arrives, or SIGTERM
is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveCacheSize, "cache-size", loader.DefaultCacheSize, "Number of parsed files to cache")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := getLogger()

	l, err := loader.New(loader.Options{CacheSize: serveCacheSize, Logger: log})
	if err != nil {
		return err
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create and run server
	srv, err := serve.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), serve.Options{Loader: l, Logger: log})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
