//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/services/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔍 Testing connections...")
	fmt.Println()

	fmt.Println("1️⃣  Checking Environment Variables:")
	checkEnvVar("AWS_REGION")
	checkEnvVar("DATABASE_URL")
	checkEnvVar("REDIS_ADDR")
	checkEnvVar("REPORTS_BUCKET")
	checkEnvVar("ROSTER_BUCKET")
	checkEnvVar("WEIGHTS_FILE")
	fmt.Println()

	fmt.Println("2️⃣  Testing Database Connection:")
	testDatabaseConnection(cfg)
	fmt.Println()

	fmt.Println("3️⃣  Testing Redis Connection:")
	testRedisConnection(cfg)
	fmt.Println()

	fmt.Println("✅ Connection tests complete!")
}

func checkEnvVar(name string) {
	value := os.Getenv(name)
	if value == "" {
		fmt.Printf("   ➖ %s: not set\n", name)
		return
	}
	masked := value
	if len(value) > 8 && name == "DATABASE_URL" {
		masked = value[:8] + "..." + value[len(value)-4:]
	}
	fmt.Printf("   ✅ %s: %s\n", name, masked)
}

func testDatabaseConnection(cfg *config.Config) {
	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("   ❌ Database connection failed: %v\n", err)
		return
	}
	defer db.Close()
	fmt.Println("   ✅ Database connection successful!")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var tableCount int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name IN ('athletes', 'campaigns', 'agencies', 'agency_athlete_interactions')
	`).Scan(&tableCount)
	if err == nil {
		fmt.Printf("   📊 Core tables found: %d/4 (athletes, campaigns, agencies, agency_athlete_interactions)\n", tableCount)
	}
}

func testRedisConnection(cfg *config.Config) {
	if !cfg.CacheEnabled() {
		fmt.Println("   ➖ REDIS_ADDR not set, snapshot cache disabled")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Printf("   ❌ Redis ping failed: %v\n", err)
		return
	}
	fmt.Println("   ✅ Redis connection successful!")
}
