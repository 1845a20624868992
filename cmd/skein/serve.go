package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/manifest"
	"github.com/skein-dev/skein/internal/server"
)

var serveManifestPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet with the status server",
	Long: `Start the fleet declared in the manifest and expose the status
API. The manifest is watched for changes: edits to agent declarations
take effect without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveManifestPath, "manifest", "agents.yaml", "Path to the fleet manifest")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m, err := manifest.Load(serveManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	f, client, err := buildFleet(cfg, m)
	if err != nil {
		return fmt.Errorf("build fleet: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[serve] close fleet: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := f.Initialize(ctx); err != nil {
		return err
	}

	watcher, err := manifest.Watch(serveManifestPath)
	if err != nil {
		return fmt.Errorf("watch manifest: %w", err)
	}
	defer watcher.Close()

	go func() {
		for updated := range watcher.Updates() {
			if err := registerManifestAgents(f, client, cfg, updated); err != nil {
				log.Printf("[serve] manifest reload: %v", err)
				continue
			}
			log.Printf("[serve] manifest reloaded: %d agents", len(updated.Agents))
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(f).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
