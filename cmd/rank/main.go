// Package main is an offline ranking tool: it scores an athlete roster CSV
// against a campaign JSON file and prints the ranked page as JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/ranking"
	s3service "nil-match-engine/internal/services/s3"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
	"nil-match-engine/internal/utils"
)

// options holds the command line flags.
type options struct {
	roster        string
	campaign      string
	weights       string
	region        string
	sortKey       string
	order         string
	page          int
	limit         int
	budgetDivisor int64
	sports        []string
	minFollowers  int64
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank an athlete roster against a campaign",
		Long:  `Score every athlete in a roster CSV against a campaign target and print
the ranked page as JSON.

The roster may be a local path or an s3://bucket/key location. Rows that
fail to parse are reported on stderr and skipped.

Examples:
  rank --roster team.csv --campaign spring.json
  rank --roster s3://nil-rosters/rosters/team.csv --campaign spring.json --sort followers --limit 50`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.roster, "roster", "", "roster CSV path or s3:// URL")
	flags.StringVar(&opts.campaign, "campaign", "", "campaign target JSON file")
	flags.StringVar(&opts.weights, "weights", "", "alternate weights table (YAML or JSON)")
	flags.StringVar(&opts.region, "region", "us-east-1", "AWS region for s3:// rosters")
	flags.StringVar(&opts.sortKey, "sort", string(models.SortByMatchScore), "sort key: match_score, followers, engagement or fmv")
	flags.StringVar(&opts.order, "order", string(models.SortDesc), "sort order: asc or desc")
	flags.IntVar(&opts.page, "page", 1, "result page")
	flags.IntVar(&opts.limit, "limit", models.DefaultPageLimit, "results per page")
	flags.Int64Var(&opts.budgetDivisor, "budget-divisor", scoring.DefaultBudgetDivisor, "split of a campaign total budget when no per-athlete budget is set")
	flags.StringSliceVar(&opts.sports, "sport", nil, "only rank athletes playing one of these sports")
	flags.Int64Var(&opts.minFollowers, "min-followers", 0, "only rank athletes with at least this many followers")
	_ = cmd.MarkFlagRequired("roster")
	_ = cmd.MarkFlagRequired("campaign")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	weights, err := config.LoadWeights(opts.weights)
	if err != nil {
		return err
	}

	target, err := loadCampaign(opts.campaign)
	if err != nil {
		return err
	}

	content, err := readRoster(ctx, opts.roster, opts.region)
	if err != nil {
		return err
	}

	mem := store.NewMemory()
	if err := mem.PutCampaign(target); err != nil {
		return err
	}

	athletes, parseErrors := utils.NewRosterParser().ParseAthletes(string(content))
	for _, e := range parseErrors {
		fmt.Fprintf(stderr, "roster: %v\n", e)
	}
	for _, a := range athletes {
		if err := mem.PutCandidate(a); err != nil {
			fmt.Fprintf(stderr, "roster: %v\n", err)
		}
	}

	scorer := scoring.NewScorer(weights, scoring.WithBudgetDivisor(opts.budgetDivisor))
	svc := ranking.NewService(mem, scorer, ranking.Config{}, utils.GetLogger())

	resp, err := svc.Search(ctx, models.SearchRequest{
		Mode:     models.ModeCampaign,
		TargetID: target.CampaignID,
		Filters:  models.CandidateFilter{Sports: opts.sports, MinFollowers: opts.minFollowers},
		Sort:     models.SortSpec{Key: models.SortKey(opts.sortKey), Order: models.SortOrder(opts.order)},
		Page:     models.PageRequest{Page: opts.page, Limit: opts.limit},
	})
	if err != nil {
		return fmt.Errorf("failed to rank roster: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

func loadCampaign(path string) (*models.TargetCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign: %w", err)
	}
	var target models.TargetCriteria
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("failed to parse campaign %s: %w", path, err)
	}
	if target.CampaignID == "" {
		target.CampaignID = "campaign"
	}
	return &target, nil
}

func readRoster(ctx context.Context, location, region string) ([]byte, error) {
	if !s3service.IsURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read roster: %w", err)
		}
		return data, nil
	}

	bucket, key, err := s3service.ParseURL(location)
	if err != nil {
		return nil, err
	}
	svc, err := s3service.NewService(ctx, region, bucket)
	if err != nil {
		return nil, err
	}
	return svc.DownloadFile(ctx, key)
}

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	if err := utils.InitLogger(level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		utils.Sync()
		os.Exit(1)
	}
}
