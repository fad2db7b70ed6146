package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"sunshine/internal/config"
	"sunshine/internal/etl"
	"sunshine/internal/ledger"
	"sunshine/internal/metrics"
	"sunshine/internal/metrics/datadog"
	"sunshine/internal/metrics/prompush"
	"sunshine/internal/schema"
	"sunshine/internal/storage/postgres"
	"sunshine/internal/views"
)

// main is the entry point for the sunshine binary. It wires configuration,
// an optional metrics backend, the warehouse session, and runs the requested
// phases: load the datasets, rebuild the derived views, or both.
func main() {
	cfg := config.FromEnv()

	var (
		loadData      bool
		recreateViews bool
	)

	flag.BoolVar(&loadData, "load-data", false, "stage and merge every dataset extract")
	flag.BoolVar(&recreateViews, "recreate-views", false, "drop the derived views before rebuilding them")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "warehouse connection string (env SUNSHINE_DB_DSN)")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the extract files")
	flag.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "staged rows per COPY batch")
	flag.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "SQLite run ledger path; empty disables run history")
	flag.BoolVar(&cfg.SkipUnchanged, "skip-unchanged", cfg.SkipUnchanged, "skip datasets whose extract hash matches the last merged run")
	flag.StringVar(&cfg.MetricsBackend, "metrics-backend", cfg.MetricsBackend, "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&cfg.PushgatewayURL, "pushgateway-url", cfg.PushgatewayURL, "Pushgateway base URL")
	flag.StringVar(&cfg.DatadogAddr, "datadog-addr", cfg.DatadogAddr, "DogStatsD address, e.g. 127.0.0.1:8125")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if !loadData && !recreateViews {
		// The default run loads and refreshes, matching the nightly job.
		loadData = true
	}

	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}

	setupMetrics(cfg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	session, closeSession, err := postgres.Connect(ctx, cfg.DSN)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer closeSession()

	if err := schema.Ensure(ctx, session); err != nil {
		fatalf("schema: %v", err)
	}

	var loadErr error
	if loadData {
		pipeline := &etl.Pipeline{
			DB:            session,
			DataDir:       cfg.DataDir,
			BatchSize:     cfg.BatchSize,
			SkipUnchanged: cfg.SkipUnchanged,
		}
		if cfg.LedgerPath != "" {
			led, err := ledger.Open(cfg.LedgerPath)
			if err != nil {
				fatalf("ledger: %v", err)
			}
			defer led.Close()
			pipeline.Ledger = led
		}
		// Per-dataset failures are already logged; the joined error decides
		// the exit code after views are handled.
		_, loadErr = pipeline.LoadAll(ctx)
	}

	if recreateViews {
		if err := views.DropAll(ctx, session); err != nil {
			fatalf("drop views: %v", err)
		}
	}

	viewStart := time.Now()
	err = views.BuildAll(ctx, session)
	metrics.RecordStep("views", "build", err, time.Since(viewStart))
	if err != nil {
		fatalf("build views: %v", err)
	}
	if err := views.EnsureIndexes(ctx, session); err != nil {
		fatalf("indexes: %v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if loadErr != nil {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
		os.Exit(1)
	}
}

// setupMetrics installs the configured backend; the nop backend remains on
// any failure so metric calls stay safe.
func setupMetrics(cfg config.Config, verbose bool) {
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend("sunshine", cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s", cfg.PushgatewayURL)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.DatadogAddr, Namespace: "sunshine."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s", cfg.DatadogAddr)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
