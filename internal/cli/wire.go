package cli

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"corpusmill/internal/config"
	"corpusmill/internal/domain/entity"
	"corpusmill/internal/infra/adapter/persistence/corpuscsv"
	"corpusmill/internal/infra/adapter/persistence/postgres"
	"corpusmill/internal/infra/adapter/persistence/rawcsv"
	"corpusmill/internal/infra/adapter/persistence/sqlite"
	"corpusmill/internal/infra/db"
	"corpusmill/internal/infra/extractor"
	"corpusmill/internal/infra/feedclient"
	"corpusmill/internal/infra/gdelt"
	"corpusmill/internal/infra/openalex"
	"corpusmill/internal/infra/weblist"
	"corpusmill/internal/repository"
	"corpusmill/internal/usecase/dedupe"
	"corpusmill/internal/usecase/enrich"
	"corpusmill/internal/usecase/harvest"
	"corpusmill/internal/usecase/normalize"
	"corpusmill/internal/usecase/pipeline"
)

// newHTTPClient creates the shared outbound HTTP client with timeouts and
// connection pooling. TLS 1.2+ is enforced.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// buildSourceClients registers one harvest client per source kind over a
// shared HTTP client.
func buildSourceClients(cfg *config.RunConfig) map[entity.SourceKind]harvest.SourceClient {
	httpClient := newHTTPClient()
	feed := feedclient.NewClient(httpClient)

	return map[entity.SourceKind]harvest.SourceClient{
		entity.SourceKindSyndication: feed,
		entity.SourceKindAcademic: openalex.NewClient(httpClient, openalex.Options{
			Mailto:     cfg.Providers.Mailto,
			PerPage:    cfg.Providers.PerPage,
			MaxRecords: cfg.Providers.MaxRecords,
		}),
		entity.SourceKindEvents: gdelt.NewClient(httpClient, gdelt.Options{
			MaxRecords: cfg.Providers.MaxRecords,
		}),
		// Civic bodies publish either a feed or a listing page; the
		// dispatcher picks per source.
		entity.SourceKindCivic: harvest.FeedOrListing{
			Feed:    feed,
			Listing: weblist.NewClient(httpClient),
		},
	}
}

// buildHarvest assembles the harvest service over the configured staging
// directory.
func buildHarvest(cfg *config.RunConfig) harvest.Service {
	staging := rawcsv.NewStore(cfg.Output.RawDir)
	return harvest.NewService(buildSourceClients(cfg), staging, cfg.Harvest.Parallelism)
}

// buildEnricher assembles the excerpt stage. Fetch behavior comes from the
// EXCERPT_FETCH_* environment; the run file supplies the stage-level knobs
// and may override the per-host rate.
func buildEnricher(cfg *config.RunConfig) (*enrich.Service, error) {
	fetchCfg, err := extractor.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("extractor config: %w", err)
	}
	if cfg.Extraction.PerHostRate > 0 {
		fetchCfg.PerHostRate = cfg.Extraction.PerHostRate
		if err := fetchCfg.Validate(); err != nil {
			return nil, fmt.Errorf("extractor config: %w", err)
		}
	}

	svc := enrich.NewService(extractor.NewReadabilityFetcher(fetchCfg), enrich.Options{
		Parallelism:     cfg.Extraction.Parallelism,
		Budget:          cfg.Extraction.Budget.Std(),
		MaxExcerptRunes: cfg.Extraction.MaxExcerptRunes,
	})
	return &svc, nil
}

// openStore opens and migrates the optional corpus mirror. An empty DSN
// returns a nil repository, which the pipeline reads as "no mirror".
func openStore(dsn string) (repository.CorpusRepository, func(), error) {
	if dsn == "" {
		return nil, func() {}, nil
	}

	sqlDB, dialect, err := db.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus store: %w", err)
	}
	if err := db.MigrateUp(sqlDB, dialect); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrate corpus store: %w", err)
	}

	closeStore := func() {
		if err := sqlDB.Close(); err != nil {
			slog.Default().Error("failed to close corpus store", slog.Any("error", err))
		}
	}
	if dialect == db.DialectPostgres {
		return postgres.NewCorpusRepo(sqlDB), closeStore, nil
	}
	return sqlite.NewCorpusRepo(sqlDB), closeStore, nil
}

// buildPipeline assembles the merge pipeline for one invocation. The
// returned cleanup closes the optional store connection.
func buildPipeline(cfg *config.RunConfig, extract bool) (*pipeline.Service, func(), error) {
	deduper, err := dedupe.NewService(dedupe.Options{
		Algorithm:  cfg.Dedupe.Algorithm,
		Threshold:  cfg.Dedupe.Threshold,
		WindowDays: cfg.Dedupe.WindowDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dedupe options: %w", err)
	}

	var enricher *enrich.Service
	if extract {
		enricher, err = buildEnricher(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	store, closeStore, err := openStore(cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}

	svc := pipeline.NewService(
		rawcsv.NewStore(cfg.Output.RawDir),
		normalize.NewService(),
		deduper,
		enricher,
		corpuscsv.NewWriter(),
		store,
		Version,
	)
	return &svc, closeStore, nil
}

// parseDateFlag parses a --since/--until value in the corpus date layout.
// An empty value yields the zero time, which the harvest clients read as
// "unbounded on that side".
func parseDateFlag(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(entity.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, value)
	}
	return t, nil
}

// dateRange reads the verb's --since/--until flags.
func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")

	since, err := parseDateFlag(sinceStr, "since")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	until, err := parseDateFlag(untilStr, "until")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until %s is before --since %s", untilStr, sinceStr)
	}
	return since, until, nil
}

// datePtr converts a flag date to the pipeline's optional form.
func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// applyPathFlags folds the verb's path flags into the run configuration.
// An explicit flag wins over the run file.
func applyPathFlags(cmd *cobra.Command, cfg *config.RunConfig) {
	if f := cmd.Flags().Lookup("raw-dir"); f != nil && f.Value.String() != "" {
		cfg.Output.RawDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("out"); f != nil && f.Value.String() != "" {
		cfg.Output.Corpus = f.Value.String()
	}
}

// extractEnabled resolves the excerpt toggle: an explicit --extract-text
// wins over the run file's extraction.enabled.
func extractEnabled(cmd *cobra.Command, cfg *config.RunConfig) bool {
	if cmd.Flags().Changed("extract-text") {
		v, _ := cmd.Flags().GetBool("extract-text")
		return v
	}
	return cfg.Extraction.Enabled
}

// printRunSummary reports the run outcome on the verb's stdout.
func printRunSummary(cmd *cobra.Command, res *pipeline.Result) {
	c := res.Counters
	out := cmd.OutOrStdout()

	if c.RecordsHarvested > 0 || c.HarvestErrors > 0 {
		fmt.Fprintf(out, "harvested: %d records (%d errors)\n", c.RecordsHarvested, c.HarvestErrors)
	}
	fmt.Fprintf(out, "merged: %d in, %d rejected, %d duplicates removed\n",
		c.RecordsIn, c.RecordsRejected, c.DuplicatesRemoved)
	if c.ExcerptsFetched > 0 || c.ExcerptsFailed > 0 {
		fmt.Fprintf(out, "excerpts: %d fetched, %d failed\n", c.ExcerptsFetched, c.ExcerptsFailed)
	}
	fmt.Fprintf(out, "corpus written: %s (%d records)\n", res.Manifest.OutPath, c.CorpusRecords)
}
