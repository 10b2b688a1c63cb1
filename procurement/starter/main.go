package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"go-temporal-procurement/procurement/config"
	"go-temporal-procurement/procurement/store"
	"go-temporal-procurement/procurement/types"
	"go-temporal-procurement/procurement/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Unable to load config", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	// Determine what to do
	mode := getEnv("STARTER_MODE", "run")
	if mode == "history" {
		showHistory(cfg)
		return
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalln("Unable to create Temporal client", err)
	}
	defer c.Close()

	req := types.ProcurementRequest{
		ItemIDs: splitList(os.Getenv("ITEM_IDS")),
		Config:  cfg.Run,
	}

	switch mode {
	case "run":
		runProcurement(c, cfg.TaskQueue, req)
	case "schedule":
		runSchedule(c, cfg, req)
	default:
		log.Fatalf("Unknown STARTER_MODE: %s (use 'run', 'schedule' or 'history')", mode)
	}
}

func runProcurement(c client.Client, taskQueue string, req types.ProcurementRequest) {
	workflowID := fmt.Sprintf("procurement-%s", time.Now().UTC().Format("20060102-150405"))

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: taskQueue,
	}

	log.Printf("Starting ProcurementWorkflow: %s\n", workflowID)

	we, err := c.ExecuteWorkflow(context.Background(), workflowOptions, workflows.ProcurementWorkflow, req)
	if err != nil {
		log.Fatalln("Unable to start workflow", err)
	}

	log.Printf("Started workflow - WorkflowID: %s, RunID: %s\n", we.GetID(), we.GetRunID())
	log.Printf("\n📋 Workflow Management Commands:\n")
	log.Printf("  View in UI: http://localhost:8080/namespaces/default/workflows/%s\n", workflowID)
	log.Printf("\n  Query status:\n")
	log.Printf("    tctl workflow query -w %s -qt %s\n", workflowID, workflows.StatusQuery)
	log.Printf("\n  Query sessions:\n")
	log.Printf("    tctl workflow query -w %s -qt %s\n", workflowID, workflows.SessionsQuery)

	if getEnv("ASYNC", "false") == "true" {
		log.Printf("\n🚀 Workflow started asynchronously. Use the commands above to follow it.\n")
		return
	}

	log.Printf("\n⏳ Waiting for quotes and confirmation...\n")

	var result types.ProcurementResult
	err = we.Get(context.Background(), &result)
	if err != nil {
		log.Printf("❌ Workflow execution failed: %v\n", err)
		return
	}
	fmt.Println(renderResult(result))

	// Query final status
	queryResp, err := c.QueryWorkflow(context.Background(), workflowID, "", workflows.StatusQuery)
	if err != nil {
		log.Printf("Failed to query status: %v\n", err)
		return
	}
	var status types.ProcurementStatus
	if err := queryResp.Get(&status); err == nil {
		log.Printf("\n📊 Final Status:\n")
		log.Printf("  Stage: %s\n", status.Stage)
		log.Printf("  Sessions: %d settled, %d expired, %d failed dispatch\n", status.Settled, status.Expired, status.Failed)
		log.Printf("  Quotes: %d (orphaned %d, late %d, malformed %d)\n", status.Quotes, status.Orphaned, status.Late, status.Malformed)
	}
}

func runSchedule(c client.Client, cfg config.Config, req types.ProcurementRequest) {
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule == "" {
		log.Fatalln("STARTER_MODE=schedule needs a schedule (PROCUREMENT_SCHEDULE)")
	}

	scheduler := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	_, err := scheduler.AddFunc(schedule, func() {
		runProcurement(c, cfg.TaskQueue, req)
	})
	if err != nil {
		log.Fatalf("Invalid schedule '%s': %v", schedule, err)
	}

	scheduler.Start()
	for _, entry := range scheduler.Entries() {
		log.Printf("Procurement scheduled (cron: %s), next run at %s\n", schedule, entry.Next.Format("Mon Jan 2 15:04"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Stopping scheduler, waiting for running cycles")
	<-scheduler.Stop().Done()
}

func showHistory(cfg config.Config) {
	db, err := store.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalln("Unable to open procurement database", err)
	}
	defer db.Close()

	limit := 20
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid HISTORY_LIMIT '%s': %v", v, err)
		}
		limit = n
	}

	records, err := db.ListRecords(context.Background(), limit)
	if err != nil {
		log.Fatalln("Unable to list procurement records", err)
	}
	if len(records) == 0 {
		log.Println("No procurement runs recorded yet")
		return
	}
	fmt.Println(renderHistory(records))
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
