package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"corpusmill/internal/config"
	"corpusmill/internal/usecase/harvest"
	"corpusmill/internal/usecase/pipeline"
)

// runCmd harvests and merges in one invocation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest sources and assemble the corpus",
	Long: `Run executes a full corpus assembly: harvest every configured source
into the staging directory, then normalize, dedupe, optionally enrich,
and write the corpus file. The run manifest covers both phases.`,
	Example: `  corpusmill run --config run.yaml
  corpusmill run --since 2015-05-01 --until 2025-10-01 --extract-text`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("raw-dir", "", "staging directory (overrides the run file)")
	runCmd.Flags().String("out", "", "corpus file path (overrides the run file)")
	runCmd.Flags().String("since", "", "harvest window start, YYYY-MM-DD")
	runCmd.Flags().String("until", "", "harvest window end, YYYY-MM-DD")
	runCmd.Flags().Bool("extract-text", false, "fetch article excerpts for the merged corpus")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadRunConfig(configPath())
	if err != nil {
		return err
	}
	applyPathFlags(cmd, cfg)

	since, until, err := dateRange(cmd)
	if err != nil {
		return err
	}
	extract := extractEnabled(cmd, cfg)

	res, err := executeRun(cmd.Context(), cfg, since, until, extract)
	if err != nil {
		return err
	}

	printRunSummary(cmd, res)
	return nil
}

// executeRun performs one full assembly, harvest then merge, under a single
// manifest. The worker's scheduled jobs go through the same path.
func executeRun(ctx context.Context, cfg *config.RunConfig, since, until time.Time, extract bool) (*pipeline.Result, error) {
	hsvc := buildHarvest(cfg)
	stats, err := hsvc.HarvestAll(ctx, cfg.Sources, harvest.Query{
		Topic: cfg.Topic,
		Since: since,
		Until: until,
	})
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}

	psvc, closeStore, err := buildPipeline(cfg, extract)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	res, err := psvc.Run(ctx, pipeline.Params{
		Topic:       cfg.Topic,
		Since:       datePtr(since),
		Until:       datePtr(until),
		RawDir:      cfg.Output.RawDir,
		OutPath:     cfg.Output.Corpus,
		ExtractText: extract,
		Harvest:     stats,
	})
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return res, nil
}
