package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/backfill"
	"github.com/minus34/gnaf-loader/bdytag"
	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/export"
	"github.com/minus34/gnaf-loader/flatten"
	"github.com/minus34/gnaf-loader/loader"
	"github.com/minus34/gnaf-loader/qa"
	"github.com/minus34/gnaf-loader/settings"
)

func main() {
	if err := settings.InitializeConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config := settings.GetConfig()

	if len(os.Args) < 2 {
		log.Fatalf("Usage: gnaf-loader create|load|flatten|bdytag|backfill|qa|export|all")
	}

	ctx := context.Background()
	defer database.CloseDBPools()

	timeStart := time.Now()

	command := os.Args[1]
	if command == "create" {
		create(config)
	} else if command == "load" {
		load(ctx, config)
	} else if command == "flatten" {
		flattenAddresses(ctx, config)
	} else if command == "bdytag" {
		tag(ctx, config)
	} else if command == "backfill" {
		runBackfill(ctx, config)
	} else if command == "qa" {
		runQA(ctx, config)
	} else if command == "export" {
		runExport(ctx, config)
	} else if command == "all" {
		create(config)
		load(ctx, config)
		flattenAddresses(ctx, config)
		tag(ctx, config)
		runBackfill(ctx, config)
		runQA(ctx, config)
		runExport(ctx, config)
	} else {
		log.Fatalf("Unknown command")
	}

	log.Infof("Total time : %v", time.Since(timeStart))
}

func create(config settings.Config) {
	if err := database.CreateAll(config); err != nil {
		log.Fatalf("Failed to create schemas and tables: %v", err)
	}
}

func load(ctx context.Context, config settings.Config) {
	if err := loader.LoadAll(ctx, config); err != nil {
		log.Fatalf("Failed to load raw GNAF: %v", err)
	}
}

func flattenAddresses(ctx context.Context, config settings.Config) {
	if err := flatten.Run(ctx, config); err != nil {
		log.Fatalf("Failed to flatten principal addresses: %v", err)
	}
}

func tag(ctx context.Context, config settings.Config) {
	if err := bdytag.Tag(ctx, config); err != nil {
		log.Fatalf("Failed to boundary tag addresses: %v", err)
	}
}

func runBackfill(ctx context.Context, config settings.Config) {
	rules := backfill.DefaultRuleSet()
	if config.RuleFile != "" {
		var err error
		rules, err = backfill.LoadRuleSet(config.RuleFile)
		if err != nil {
			log.Fatalf("Failed to load rule set: %v", err)
		}
	}

	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		log.Fatalf("Failed to get database pool: %v", err)
	}

	results, err := backfill.Run(ctx, pool, config.GnafSchema(), rules)
	if err != nil {
		log.Fatalf("Failed to backfill LGA fields: %v", err)
	}

	for _, result := range results {
		log.Infof("Rule %v: %d addresses updated", result.Rule, result.Updated)
	}

	summary, err := backfill.AuditScan(ctx, pool, config.GnafSchema(), nil)
	if err != nil {
		log.Fatalf("Failed to audit backfill: %v", err)
	}
	log.Infof("Backfill audit: %d addresses, %d without an LGA", summary.Total, summary.Unassigned)
}

func runQA(ctx context.Context, config settings.Config) {
	if err := qa.Run(ctx, config); err != nil {
		log.Fatalf("Failed to run QA row counts: %v", err)
	}
}

func runExport(ctx context.Context, config settings.Config) {
	if err := export.Run(ctx, config); err != nil {
		log.Fatalf("Failed to export audit snapshot: %v", err)
	}
}
