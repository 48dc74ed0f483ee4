package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/matchd/internal/catalog"
	"github.com/fyrsmithlabs/matchd/internal/config"
	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/logging"
	"github.com/fyrsmithlabs/matchd/internal/pipeline"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
	"github.com/fyrsmithlabs/matchd/internal/telemetry"
)

var (
	catalogPath string
	jsonOutput  bool
	showProg    bool
)

// processCmd runs a batch of line items against a catalog
var processCmd = &cobra.Command{
	Use:   "process <items.json>",
	Short: "Match a batch of line items against the parts catalog",
	Long: `Process reads line items from a JSON file and runs the full matching
pipeline over them.

The items file is a JSON array of objects:
  [{"id": "item-1", "raw_text": "10x M8x40 DIN 933 stainless", "urgency": "high"}]

Examples:
  # Match items against a catalog
  matchd process --catalog parts.json items.json

  # Machine-readable output
  matchd process --catalog parts.json --json items.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&catalogPath, "catalog", "catalog.json", "parts catalog JSON file")
	processCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full batch result as JSON")
	processCmd.Flags().BoolVar(&showProg, "progress", false, "print per-item progress to stderr")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Endpoint = cfg.Telemetry.Endpoint
	telCfg.Protocol = cfg.Telemetry.Protocol
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.ServiceVersion = version
	if d := cfg.Telemetry.ExportInterval.Duration(); d > 0 {
		telCfg.ExportInterval = d
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()
	if tel.Degraded() {
		logger.Warn("telemetry export degraded, continuing without it")
	}

	items, err := readItems(args[0])
	if err != nil {
		return err
	}

	searcher, err := catalog.LoadSearcher(catalogPath)
	if err != nil {
		return err
	}
	collabs := pipeline.Collaborators{
		Extractor: catalog.NewHeuristicExtractor(),
		Searcher:  searcher,
		Matcher:   catalog.NewGreedyMatcher(),
	}

	profile, err := qualitygate.ParseProfile(cfg.Pipeline.Profile)
	if err != nil {
		return err
	}
	svcCfg := &pipeline.Config{
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		TaskTimeout:    cfg.Pipeline.TaskTimeout.Duration(),
		Profile:        profile,
		Collaborators: pipeline.CollaboratorConfigs{
			Extractor: pipeline.ExtractorConfig{
				DetailLevel: cfg.Collaborators.Extractor.DetailLevel,
			},
			Searcher: pipeline.SearcherConfig{
				SimilarityThreshold: cfg.Collaborators.Searcher.SimilarityThreshold,
				MaxResults:          cfg.Collaborators.Searcher.MaxResults,
			},
			Matcher: pipeline.MatcherConfig{
				MinConfidence: cfg.Collaborators.Matcher.MinConfidence,
			},
		},
		PriorityFor: priorityFromUrgency,
	}
	if showProg {
		svcCfg.OnProgress = func(p pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", p.Completed, p.Total, p.ItemID, p.State)
		}
	}

	svc, err := pipeline.NewService(svcCfg, collabs, logger)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	result, err := svc.ProcessBatch(ctx, items)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printSummary(result)
	return nil
}

func readItems(path string) ([]lineitem.LineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var items []lineitem.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("items file %s contains no items", path)
	}
	return items, nil
}

func priorityFromUrgency(item *lineitem.LineItem) pipeline.Priority {
	switch item.Urgency {
	case lineitem.UrgencyCritical, lineitem.UrgencyHigh:
		return pipeline.PriorityHigh
	case lineitem.UrgencyLow:
		return pipeline.PriorityLow
	default:
		return pipeline.PriorityMedium
	}
}

func printSummary(result *pipeline.BatchResult) {
	stats := result.Statistics
	fmt.Printf("Processed %d items in %s confidence batch\n", stats.TotalItems, result.Confidence)
	fmt.Printf("  matched:        %d\n", stats.CompletedSuccessfully)
	fmt.Printf("  needs review:   %d\n", stats.RequiresReview)
	fmt.Printf("  failed:         %d\n", stats.Failed)
	fmt.Printf("  avg time/item:  %.1fms\n", stats.AverageProcessingTimeMs)

	ids := make([]string, 0, len(result.Matches))
	for id := range result.Matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println()
	for _, id := range ids {
		out := result.Matches[id]
		switch {
		case out.Match != nil && out.Match.Selected != nil:
			fmt.Printf("  %-12s -> %s (%s, %.2f confidence, %d retries)\n",
				id, out.Match.Selected.PartNumber, out.State, out.Match.Confidence, out.RetryCount)
		case out.Error != "":
			fmt.Printf("  %-12s -> %s: %s\n", id, out.State, out.Error)
		default:
			reason := out.Reasoning
			if reason == "" && len(out.Issues) > 0 {
				reason = out.Issues[0]
			}
			fmt.Printf("  %-12s -> %s: %s\n", id, out.State, reason)
		}
	}
}
