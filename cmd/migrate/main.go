// CLI tool to apply the embedded goose migrations.
// goose records applied versions in goose_db_version, so re-running is a no-op.
// Usage: go run ./cmd/migrate [up|down|status]   (default: up)
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"lg/nutrition-api/migrations"
)

func main() {
	_ = godotenv.Load()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	db, err := sql.Open("pgx", os.Getenv("DB_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading migrations: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			fmt.Printf("  applied: %s (%s)\n", r.Source.Path, r.Duration)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("No pending migrations.")
		} else {
			fmt.Printf("\n%d migration(s) applied.\n", len(results))
		}
	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rolling back: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  rolled back: %s\n", r.Source.Path)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
			os.Exit(1)
		}
		for _, s := range statuses {
			fmt.Printf("  %-8s %s\n", s.State, s.Source.Path)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, expected up, down or status\n", cmd)
		os.Exit(2)
	}
}
