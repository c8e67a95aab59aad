//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/services/database"
)

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Connect to the default 'postgres' database to create ours
	target, err := url.Parse(cfg.DatabaseURL())
	if err != nil {
		fmt.Printf("❌ Invalid database URL: %v\n", err)
		os.Exit(1)
	}
	dbName := target.Path[1:]
	admin := *target
	admin.Path = "/postgres"

	fmt.Println("📡 Connecting to PostgreSQL server...")
	adminConn, err := pgx.Connect(ctx, admin.String())
	if err != nil {
		fmt.Printf("❌ Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		fmt.Printf("❌ Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("📦 Creating '%s' database...\n", dbName)
		if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			fmt.Printf("❌ Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
		fmt.Printf("✅ Database '%s' created!\n", dbName)
	} else {
		fmt.Printf("✅ Database '%s' already exists\n", dbName)
	}
	adminConn.Close(ctx)

	fmt.Printf("📡 Connecting to %s database...\n", dbName)
	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	fmt.Println("✅ Connected to database successfully!")
	fmt.Println()

	fmt.Println("🚀 Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Schema applied successfully!")
	fmt.Println()

	fmt.Println("🔍 Verifying database setup...")
	tables := []string{
		"agencies", "athletes", "social_stats", "fmv_estimates", "campaigns",
		"agency_brand_values", "agency_search_criteria", "athlete_trait_scores",
		"agency_athlete_interactions",
	}
	for _, table := range tables {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&count); err != nil {
			fmt.Printf("   ⚠️  %s: %v\n", table, err)
			continue
		}
		fmt.Printf("   📦 %-28s %d rows\n", table, count)
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Test the connection: go run scripts/test_connection.go")
	fmt.Println("  2. Load the sample roster: go run scripts/test_local.go")
	fmt.Println("  3. Start the API: go run ./cmd/server")
}
