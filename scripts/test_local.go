//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/database"
	"nil-match-engine/internal/services/ranking"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/utils"
)

const demoCampaignID = "demo-spring-kickoff"

func main() {
	fmt.Println("=== NIL Match Engine - Local Test ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.InitLogger("warn"); err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	fmt.Println("✅ Connected to database")

	fmt.Println()
	fmt.Println("📖 Parsing sample roster...")
	content, err := os.ReadFile("data/sample_roster.csv")
	if err != nil {
		fmt.Printf("❌ Failed to read roster: %v\n", err)
		os.Exit(1)
	}

	athletes, parseErrors := utils.NewRosterParser().ParseAthletes(string(content))
	for _, e := range parseErrors {
		fmt.Printf("   ⚠️  %v\n", e)
	}
	fmt.Printf("✅ Parsed %d athletes from roster\n", len(athletes))

	fmt.Println()
	fmt.Println("📥 Upserting athletes...")
	repo := database.NewRepository(db)
	result, err := repo.UpsertCandidates(ctx, athletes)
	if err != nil {
		fmt.Printf("❌ Failed to upsert athletes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Upserted %d athletes (%d failed)\n", result.InsertedCount, result.FailedCount)

	_, err = db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, target_sports, budget_per_athlete, target_causes, target_states)
		VALUES ($1, 'Demo spring kickoff', $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, demoCampaignID, []string{"soccer", "basketball"}, int64(7000000), []string{"literacy", "youth sports"}, []string{"TX"})
	if err != nil {
		fmt.Printf("❌ Failed to seed demo campaign: %v\n", err)
		os.Exit(1)
	}

	weights, err := config.LoadWeights(cfg.WeightsFile)
	if err != nil {
		fmt.Printf("❌ Failed to load weights: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("🎯 Ranking athletes for the demo campaign...")
	svc := ranking.NewService(repo, scoring.NewScorer(weights), ranking.Config{}, utils.GetLogger())
	resp, err := svc.Search(ctx, models.SearchRequest{
		Mode:     models.ModeCampaign,
		TargetID: demoCampaignID,
		Page:     models.PageRequest{Limit: 10},
	})
	if err != nil {
		fmt.Printf("❌ Search failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("   ─────────────────────────────────────────────────────────")
	for i, r := range resp.Results {
		fmt.Printf("   %2d. %-10s %3d  (%s)\n", i+1, r.CandidateID, r.MatchResult.Total, r.MatchResult.Confidence)
	}
	fmt.Println("   ─────────────────────────────────────────────────────────")
	fmt.Printf("   📊 %d athletes scored, partial=%v\n", resp.Total, resp.Partial)

	fmt.Println()
	fmt.Println("🎉 Local test complete!")
}
