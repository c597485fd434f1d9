package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"corpusmill/internal/config"
	"corpusmill/internal/usecase/pipeline"
)

// mergeCmd assembles the corpus from previously staged batches.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Normalize, dedupe, and write the corpus",
	Long: `Merge loads the staged raw batches, normalizes them onto the unified
schema, collapses duplicates, optionally fetches article excerpts, and
writes the corpus CSV. With a store DSN configured the corpus is also
mirrored to the relational store.

Merge does not harvest, so it works without a run file: the defaults
cover a plain staging-to-corpus pass.`,
	Example: `  corpusmill merge --raw-dir data/raw --out out/corpus.csv
  corpusmill merge --extract-text`,
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().String("raw-dir", "", "staging directory (overrides the run file)")
	mergeCmd.Flags().String("out", "", "corpus file path (overrides the run file)")
	mergeCmd.Flags().String("since", "", "window start recorded in the manifest, YYYY-MM-DD")
	mergeCmd.Flags().String("until", "", "window end recorded in the manifest, YYYY-MM-DD")
	mergeCmd.Flags().Bool("extract-text", false, "fetch article excerpts for the merged corpus")
}

func runMerge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMergeConfig(configPath())
	if err != nil {
		return err
	}
	applyPathFlags(cmd, cfg)

	since, until, err := dateRange(cmd)
	if err != nil {
		return err
	}
	extract := extractEnabled(cmd, cfg)

	svc, closeStore, err := buildPipeline(cfg, extract)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := svc.Run(cmd.Context(), pipeline.Params{
		Topic:       cfg.Topic,
		Since:       datePtr(since),
		Until:       datePtr(until),
		RawDir:      cfg.Output.RawDir,
		OutPath:     cfg.Output.Corpus,
		ExtractText: extract,
	})
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	printRunSummary(cmd, res)
	return nil
}
