package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/audit"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/cache"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/config"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/events"
	sharedlog "github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo/postgres"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/usecase"
)

// notifyReEvaluator asks running pricing services to re-price an item over
// the attendance channel.
type notifyReEvaluator struct {
	notifier *events.AttendanceNotifier
}

func (n notifyReEvaluator) Trigger(ctx context.Context, itemID string) error {
	return n.notifier.Notify(ctx, itemID)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	eventsPath := flag.String("events", "", "optional CSV of events to upsert before the rules")
	dryRun := flag.Bool("dry-run", false, "parse and validate only")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: import-pricing-rules [-config path] [-events events.csv] [-dry-run] <rules.csv>")
	}
	rulesPath := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		log.Fatalf("Importing requires the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	if err := sharedlog.Init(cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	rules, warnings, err := readRulesFile(rulesPath)
	if err != nil {
		log.Fatalf("Failed to read pricing rules from CSV: %v", err)
	}
	for _, w := range warnings {
		sharedlog.Warn(ctx, "Skipping invalid rule row", zap.String("row", w.String()))
	}
	fmt.Printf("Loaded %d pricing rules from CSV (%d skipped)\n", len(rules), len(warnings))

	if *dryRun {
		return
	}
	if len(rules) == 0 && *eventsPath == "" {
		fmt.Println("Nothing to import")
		return
	}

	store, err := postgres.NewStore(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	if *eventsPath != "" {
		if err := importEvents(ctx, store, *eventsPath); err != nil {
			log.Fatalf("Failed to import events: %v", err)
		}
	}

	if len(rules) == 0 {
		return
	}

	// With Redis available, cached rule lists are invalidated and running
	// services re-price the touched items.
	var ruleRepo repo.RuleRepository = store
	var reEvaluator usecase.ReEvaluator
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			sharedlog.Warn(ctx, "Redis unavailable, running services pick up rules after the cache TTL", zap.Error(err))
		} else {
			defer c.Close()
			ruleRepo = cache.NewCachedRuleRepository(store, c, cfg.Redis.RuleTTL)
			reEvaluator = notifyReEvaluator{notifier: events.NewAttendanceNotifier(c.Client(), cfg.Redis.AttendanceChannel)}
		}
	}

	uc := usecase.NewRuleUseCase(ruleRepo, reEvaluator)
	uc.SetAuditor(audit.NewManager(audit.NewZapAuditLogger(sharedlog.L(ctx))))
	ctx = sharedlog.WithOrganizerID(ctx, "import-pricing-rules")
	result, err := uc.BulkUpsertRules(ctx, rules)
	if err != nil {
		log.Fatalf("Failed to import pricing rules: %v", err)
	}

	fmt.Printf("Successfully imported %d pricing rules for %d events\n", len(result.Saved), len(result.Items))
}

func importEvents(ctx context.Context, store *postgres.Store, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	states, warnings, err := readEvents(file)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		sharedlog.Warn(ctx, "Skipping invalid event row", zap.String("row", w.String()))
	}

	for _, state := range states {
		if err := store.UpsertEvent(ctx, state); err != nil {
			return fmt.Errorf("event %s: %w", state.ItemID, err)
		}
	}
	fmt.Printf("Imported %d events (%d skipped)\n", len(states), len(warnings))
	return nil
}

func readRulesFile(path string) ([]domain.PricingRule, []RowWarning, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return readRules(file)
}
