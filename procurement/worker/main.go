package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"go-temporal-procurement/procurement/activities"
	"go-temporal-procurement/procurement/callback"
	"go-temporal-procurement/procurement/callprovider"
	"go-temporal-procurement/procurement/catalog"
	"go-temporal-procurement/procurement/config"
	"go-temporal-procurement/procurement/store"
	"go-temporal-procurement/procurement/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Unable to load config", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalln("Unable to create Temporal client", err)
	}
	defer c.Close()

	db, err := store.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalln("Unable to open procurement database", err)
	}
	defer db.Close()

	catalogSource := catalog.FileSource{Path: cfg.CatalogPath}
	provider, err := newProvider(cfg, catalogSource, logger)
	if err != nil {
		log.Fatalln("Unable to create call provider", err)
	}

	// Create worker with options
	identity := "procurement-worker-" + hostname()
	w := worker.New(c, cfg.TaskQueue, worker.Options{
		Identity:                               identity,
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.ProcurementWorkflow)

	// Register activities
	catalogActivities := &activities.CatalogActivities{Source: catalogSource}
	w.RegisterActivity(catalogActivities.LoadCatalog)

	callActivities := &activities.CallActivities{Provider: provider, CallbackBaseURL: cfg.CallbackBaseURL}
	w.RegisterActivity(callActivities.OpenQuoteSession)
	w.RegisterActivity(callActivities.OpenConfirmationSession)
	w.RegisterActivity(callActivities.HangUpSession)

	auditActivities := &activities.AuditActivities{Store: db}
	w.RegisterActivity(auditActivities.RecordProcurement)

	// Callback ingestion runs next to the worker and stops with it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := callback.NewServer(c, logger).ListenAndServe(ctx, cfg.CallbackAddr); err != nil {
			logger.Error("Callback server stopped", "error", err)
		}
	}()

	logger.Info("Worker starting", "taskQueue", cfg.TaskQueue, "identity", identity, "provider", cfg.Provider.Kind)

	// Start worker
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalln("Unable to start worker", err)
	}
}

func newProvider(cfg config.Config, source catalog.Source, logger *slog.Logger) (callprovider.Provider, error) {
	if cfg.Provider.Kind == "http" {
		return callprovider.NewHTTPProvider(callprovider.HTTPConfig{
			BaseURL:         cfg.Provider.BaseURL,
			AccountSID:      cfg.Provider.AccountSID,
			AuthToken:       cfg.Provider.AuthToken,
			FromNumber:      cfg.Provider.FromNumber,
			Timeout:         cfg.ProviderTimeout(),
			AllowedContacts: cfg.Provider.AllowedContacts,
		}), nil
	}

	// Simulated vendors price from the catalog's reference costs
	cat, err := source.Load(context.Background())
	if err != nil {
		return nil, err
	}
	logger.Warn("Using simulated call provider", "vendors", len(cat.Vendors))
	return callprovider.NewSimulator(callprovider.CatalogPrices(cat), 2*time.Second, logger), nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
