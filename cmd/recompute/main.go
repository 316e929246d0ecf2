// CLI tool to rebuild daily_stats rows for one user from their meal items.
// Each day goes through the same locked recompute the API uses, so it is
// safe to run against a live database.
// Usage: go run ./cmd/recompute -user 1 -from 2024-06-01 [-to 2024-06-30] [-max-days 366]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/config"
	"lg/nutrition-api/internal/ledger"
	"lg/nutrition-api/internal/logger"
	"lg/nutrition-api/internal/postgres"
)

func main() {
	userID := flag.Int("user", 0, "user id")
	from := flag.String("from", "", "first day, YYYY-MM-DD")
	to := flag.String("to", "", "last day, YYYY-MM-DD (default: from)")
	maxDays := flag.Int("max-days", 366, "refuse ranges longer than this")
	flag.Parse()

	if *userID <= 0 || *from == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *to == "" {
		*to = *from
	}

	days, err := calendar.Days(*from, *to, *maxDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid range: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	tx := postgres.NewTxManager(pool)
	cache := aggregate.New(ledger.NewReader(postgres.NewMealRepo(pool)), postgres.NewStatsRepo(pool), tx, log, aggregate.Options{
		Timeout: cfg.Stats.RecomputeTimeout,
	})

	failed := 0
	for _, d := range days {
		anchor, _ := calendar.Anchor(d)
		t, err := cache.Recompute(ctx, *userID, anchor)
		if err != nil {
			log.Error("recompute failed", zap.Int("user_id", *userID), zap.String("day", d), zap.Error(err))
			failed++
			continue
		}
		fmt.Printf("  %s  kcal=%s protein=%s carb=%s fat=%s\n", d, t.Kcal, t.Protein, t.Carb, t.Fat)
	}

	fmt.Printf("\n%d day(s) recomputed, %d failed.\n", len(days)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
