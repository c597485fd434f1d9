package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"corpusmill/internal/config"
	"corpusmill/internal/usecase/harvest"
)

// harvestCmd stages raw batches without merging them.
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Pull sources and stage raw batches",
	Long: `Harvest pulls every source declared in the run file and stages one raw
CSV batch per source kind under the staging directory. Nothing is
normalized or deduplicated; merge picks the batches up later.`,
	Example: `  corpusmill harvest --config run.yaml
  corpusmill harvest --since 2024-01-01 --until 2024-06-30`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().String("raw-dir", "", "staging directory (overrides the run file)")
	harvestCmd.Flags().String("since", "", "harvest window start, YYYY-MM-DD")
	harvestCmd.Flags().String("until", "", "harvest window end, YYYY-MM-DD")
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadRunConfig(configPath())
	if err != nil {
		return err
	}
	applyPathFlags(cmd, cfg)

	since, until, err := dateRange(cmd)
	if err != nil {
		return err
	}

	svc := buildHarvest(cfg)
	stats, err := svc.HarvestAll(cmd.Context(), cfg.Sources, harvest.Query{
		Topic: cfg.Topic,
		Since: since,
		Until: until,
	})
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "harvested %d records from %d sources (%d errors) in %s\n",
		stats.Records, stats.Sources, stats.Errors, stats.Duration.Round(time.Millisecond))
	for _, path := range stats.BatchPaths {
		fmt.Fprintf(out, "staged %s\n", path)
	}
	return nil
}
