package main

import (
	"context"
	"log"

	"github.com/dmkorneev/go-gift-relay/internal/awsx"
	"github.com/dmkorneev/go-gift-relay/internal/bot"
	"github.com/dmkorneev/go-gift-relay/internal/config"
	"github.com/dmkorneev/go-gift-relay/internal/giftcatalog"
	"github.com/dmkorneev/go-gift-relay/internal/ledger"
	"github.com/dmkorneev/go-gift-relay/internal/orchestrator"
	"github.com/dmkorneev/go-gift-relay/internal/session"
	"github.com/dmkorneev/go-gift-relay/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	client := telegram.NewClient(cfg.Token)
	catalog := giftcatalog.Default()
	sessions := session.NewManager(catalog)

	// AWS clients are only needed for the dynamo ledger backend and the
	// optional reconcile queue / metrics wiring.
	var clients *awsx.Clients
	if cfg.LedgerBackend == "dynamo" || cfg.ReconcileQueueURL != "" || cfg.MetricsNamespace != "" {
		clients, err = awsx.NewClients(ctx)
		if err != nil {
			log.Fatalf("failed to init aws clients: %v", err)
		}
	}

	var store ledger.Store
	switch cfg.LedgerBackend {
	case "dynamo":
		store = ledger.NewDynamoStore(clients.DynamoDB, cfg.LedgerTable)
	default:
		// a corrupt ledger file is fatal: the process cannot operate
		// without a trustworthy ledger
		fileStore, err := ledger.OpenFile(cfg.LedgerFile)
		if err != nil {
			log.Fatalf("open ledger: %v", err)
		}
		store = fileStore
	}

	flowCfg := orchestrator.Config{
		Catalog:  catalog,
		Sessions: sessions,
		Ledger:   store,
		Payments: client,
		Delivery: client,
	}
	if cfg.ReconcileQueueURL != "" {
		flowCfg.Reconcile = awsx.NewReconcilePublisher(clients.SQS, cfg.ReconcileQueueURL)
	}
	if cfg.MetricsNamespace != "" {
		flowCfg.Metrics = awsx.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	}
	flow := orchestrator.New(flowCfg)

	router := bot.New(bot.Config{
		API:      client,
		Catalog:  catalog,
		Sessions: sessions,
		Ledger:   store,
		Flow:     flow,
	})

	if cfg.Mode == "webhook" {
		runWebhook(cfg, router)
		return
	}
	runPolling(ctx, client, router)
}
