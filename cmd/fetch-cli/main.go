package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videofetch/internal/adapters/ffprobe"
	"videofetch/internal/adapters/firewall"
	"videofetch/internal/adapters/ntfy"
	"videofetch/internal/adapters/sshtransport"
	"videofetch/internal/config"
	"videofetch/internal/core/domain"
	"videofetch/internal/logging"
	"videofetch/internal/service"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, environment variables might be set manually
		log.Println("No .env file found")
	}

	project := flag.String("p", "", "project name (selects configs/<PROJECT>.json)")
	force := flag.Bool("f", false, "force mode: skip readiness estimation and polling, probe the remote host directly")
	date := flag.String("d", "", "explicit target date (MMDDYYYY)")
	offset := flag.Int("o", 0, "fetch the video from N days ago")
	yesterday := flag.Bool("y", false, "shorthand for -o 1")
	flag.Usage = usage
	flag.Parse()

	if *project == "" {
		usage()
		os.Exit(1)
	}

	days := *offset
	if *yesterday && days == 0 {
		days = 1
	}

	resolvedDate, err := domain.ResolveDate(*date, days, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch-cli: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(".", *project)
	if err != nil {
		// Configuration errors happen before alerting is configured, so
		// they are reported on stderr only.
		fmt.Fprintf(os.Stderr, "fetch-cli: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File, cfg.Log.MaxSizeBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch-cli: %v\n", err)
		os.Exit(1)
	}

	transport, err := sshtransport.New(cfg.Remote.Host, cfg.Remote.Port, cfg.Remote.User, cfg.Remote.KeyFile, cfg.Timing.ConnectTimeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch-cli: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	feed := ntfy.New(cfg.Feed.BaseURL, cfg.Feed.Topic, cfg.Feed.Token)

	orchestrator := service.New(service.Deps{
		Feed:       feed,
		Alerter:    feed,
		Transport:  transport,
		Remediator: firewall.New(cfg.Remediation.Command, cfg.Remediation.Args),
		Prober:     ffprobe.New(),
		Timing:     cfg.Timing,
		RemoteDir:  cfg.Remote.Dir,
		LocalDir:   cfg.LocalDir,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("received interrupt signal, cancelling")
		cancel()
	}()

	req := domain.FetchRequest{Project: *project, Date: resolvedDate, Force: *force}
	result, err := orchestrator.Run(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		os.Exit(1)
	}

	if result.Skipped {
		fmt.Printf("%s already exists, nothing to do\n", result.LocalPath)
		return
	}

	fmt.Println("\n=== Fetch Summary ===")
	fmt.Printf("Run ID:   %s\n", result.RunID)
	fmt.Printf("Artifact: %s\n", result.Artifact)
	fmt.Printf("Saved To: %s\n", result.LocalPath)
	if result.Duration != "" {
		fmt.Printf("Duration: %s\n", result.Duration)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: fetch-cli -p PROJECT [-f] [-d MMDDYYYY] [-o N] [-y]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "  -p PROJECT   project name; reads configs/<PROJECT>.json")
	fmt.Fprintln(os.Stderr, "  -f           force mode: skip waiting, probe remote filenames directly")
	fmt.Fprintln(os.Stderr, "  -d MMDDYYYY  explicit target date")
	fmt.Fprintln(os.Stderr, "  -o N         N days before today")
	fmt.Fprintln(os.Stderr, "  -y           yesterday (same as -o 1)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Example:")
	fmt.Fprintln(os.Stderr, "  fetch-cli -p VLA -y")
	fmt.Fprintln(os.Stderr, "  fetch-cli -p VLA -f -d 02252026")
}
