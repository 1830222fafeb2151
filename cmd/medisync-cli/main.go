// Command medisync-cli indexes local clinical documents and answers
// questions about them in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"

	"medisync-rag/internal/config"
	"medisync-rag/internal/loader"
	"medisync-rag/internal/logging"
	"medisync-rag/internal/models"
	"medisync-rag/internal/rag"
	"medisync-rag/internal/watcher"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath     string
		roleName    string
		watchDir    string
		writeConfig string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to a YAML or JSON config file (defaults to ./config.yaml or ./config.json)")
	flag.StringVar(&roleName, "role", "clinician", "Answer audience: clinician or patient")
	flag.StringVar(&watchDir, "watch", "", "Re-index when files in this directory change")
	flag.StringVar(&writeConfig, "write-config", "", "Write the effective configuration to this file and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if writeConfig != "" {
		if err := config.Save(writeConfig, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", writeConfig)
		return
	}

	inputs := flag.Args()
	if watchDir != "" {
		inputs = append(inputs, watchDir)
	}
	if len(inputs) == 0 {
		fmt.Println("Usage: medisync-cli [-config file] [-role clinician|patient] [-watch dir] file|dir|glob ...")
		os.Exit(1)
	}

	role, err := models.ParseRole(roleName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assistant, err := rag.FromConfig(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create renderer: %v\n", err)
		os.Exit(1)
	}

	session := assistant.NewSession()
	defer func() { _ = session.Close() }()
	_ = session.SetRole(role)

	docs := loader.New(cfg.Loader.MaxFileBytes)
	c := newCLI(session, os.Stdout, renderer.Render)
	if err := c.index(ctx, docs, inputs); err != nil {
		fmt.Fprintf(os.Stderr, "indexing failed: %v\n", err)
		os.Exit(1)
	}

	if watchDir != "" {
		w, err := watcher.New(docs.Extensions(), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start watcher: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = w.Stop() }()

		go func() {
			err := w.Run(ctx, watchDir, watcher.DefaultQuiet, func(evs []watcher.Event) {
				logger.Info("watched files changed", "dir", watchDir, "events", len(evs))
				if err := c.index(ctx, docs, inputs); err != nil {
					logger.Warn("re-indexing failed", "error", err)
				}
			})
			if err != nil {
				logger.Warn("watcher stopped", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- c.run(ctx, os.Stdin) }()

	select {
	case err := <-done:
		if err != nil {
			fmt.Fprintf(os.Stderr, "read input: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}
}
