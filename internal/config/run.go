// Package config holds the run configuration: the YAML run file that
// declares the topic, the harvest sources, and the knobs of each pipeline
// stage, plus the environment overrides for its secrets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"corpusmill/internal/domain/entity"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "20m" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"20m\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RunConfig is the parsed run file. Absent fields keep the defaults from
// DefaultRunConfig, so a minimal file only needs a topic and sources.
type RunConfig struct {
	// Topic is the corpus query. Provider-backed sources (academic,
	// events) push it into their API queries; feed sources ignore it.
	Topic string `yaml:"topic"`

	// Sources are the harvest origins, one entry per feed, provider
	// query, or listing page.
	Sources []entity.Source `yaml:"sources"`

	Providers  ProviderOptions   `yaml:"providers"`
	Dedupe     DedupeOptions     `yaml:"dedupe"`
	Extraction ExtractionOptions `yaml:"extraction"`
	Output     OutputOptions     `yaml:"output"`
	Store      StoreOptions      `yaml:"store"`
	Harvest    HarvestOptions    `yaml:"harvest"`
}

// ProviderOptions tune the provider-backed harvest clients. Zero values
// select each client's own defaults.
type ProviderOptions struct {
	// Mailto is the contact the academic works API asks polite clients
	// to send. CORPUSMILL_MAILTO overrides it.
	Mailto string `yaml:"mailto,omitempty"`

	// PerPage is the academic works page size. The client clamps it to
	// the API ceiling.
	PerPage int `yaml:"per_page,omitempty"`

	// MaxRecords caps what a provider query may return: total records
	// across pages for the academic client, records per window for the
	// event client.
	MaxRecords int `yaml:"max_records,omitempty"`
}

// DedupeOptions tune the fuzzy deduplicator.
type DedupeOptions struct {
	// Algorithm selects the similarity scorer: "token_set" or "jaccard".
	Algorithm string `yaml:"algorithm,omitempty"`

	// Threshold is the fuzzy match floor in [0,1].
	Threshold float64 `yaml:"threshold,omitempty"`

	// WindowDays is the date proximity window for fuzzy candidates.
	WindowDays int `yaml:"window_days,omitempty"`
}

// ExtractionOptions tune the excerpt stage.
type ExtractionOptions struct {
	// Enabled turns the stage on. The merge and run verbs can still
	// force it with --extract-text.
	Enabled bool `yaml:"enabled"`

	// Budget is the wall clock for the whole stage. Zero means
	// unbounded.
	Budget Duration `yaml:"budget,omitempty"`

	// Parallelism is the number of concurrent excerpt fetches.
	Parallelism int `yaml:"parallelism,omitempty"`

	// PerHostRate is the sustained request rate per publisher host, in
	// requests per second.
	PerHostRate float64 `yaml:"per_host_rate,omitempty"`

	// MaxExcerptRunes caps each stored excerpt.
	MaxExcerptRunes int `yaml:"max_excerpt_runes,omitempty"`
}

// OutputOptions name the run's filesystem destinations.
type OutputOptions struct {
	// RawDir is the staging directory for harvested batches.
	RawDir string `yaml:"raw_dir,omitempty"`

	// Corpus is the corpus file destination.
	Corpus string `yaml:"corpus,omitempty"`
}

// StoreOptions configure the optional relational mirror.
type StoreOptions struct {
	// DSN selects the corpus store ("postgres://..." or a SQLite path).
	// Empty disables mirroring. CORPUSMILL_STORE_DSN overrides it.
	DSN string `yaml:"dsn,omitempty"`
}

// HarvestOptions tune harvest orchestration.
type HarvestOptions struct {
	// Parallelism is the number of concurrent source harvests.
	Parallelism int `yaml:"parallelism,omitempty"`
}

// DefaultRunConfig returns the configuration a run file starts from:
// token_set dedupe at 0.90 within a ±14 day window, extraction off but
// ready with a 20 minute budget, and the conventional data/raw and
// out/corpus.csv paths.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Dedupe: DedupeOptions{
			Algorithm:  "token_set",
			Threshold:  0.90,
			WindowDays: 14,
		},
		Extraction: ExtractionOptions{
			Enabled:         false,
			Budget:          Duration(20 * time.Minute),
			Parallelism:     8,
			PerHostRate:     1.0,
			MaxExcerptRunes: 4000,
		},
		Output: OutputOptions{
			RawDir: "data/raw",
			Corpus: "out/corpus.csv",
		},
		Harvest: HarvestOptions{
			Parallelism: 4,
		},
	}
}

// LoadRunConfig reads and validates a run file. It performs the following
// steps:
//  1. Decodes the YAML over DefaultRunConfig, so absent fields keep their
//     defaults; unknown fields are rejected to catch typos
//  2. Applies the environment overrides for secrets
//  3. Validates the result
//
// A missing or invalid file is fatal: no run starts on a half-read
// configuration.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}

	cfg, err := decodeRunConfig(path, data)
	if err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadMergeConfig loads the run file for merge-only invocations. Merging
// reads staged batches instead of harvesting, so the source list is not
// required, and a missing run file falls back to the defaults with the
// environment overrides applied. Any other read or parse failure is still
// fatal.
func LoadMergeConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultRunConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}

	cfg, err := decodeRunConfig(path, data)
	if err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.validateOptions(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return cfg, nil
}

// decodeRunConfig decodes YAML over DefaultRunConfig. Unknown fields are
// rejected to catch typos; an empty file keeps every default.
func decodeRunConfig(path string, data []byte) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for the two
// secret-bearing fields, so run files can be committed without them.
func (c *RunConfig) applyEnvOverrides() {
	if v := os.Getenv("CORPUSMILL_MAILTO"); v != "" {
		c.Providers.Mailto = v
	}
	if v := os.Getenv("CORPUSMILL_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
}

// Validate checks the run file: sources present and well formed, output
// paths set, numeric knobs in range. Algorithm names are resolved by the
// deduplicator itself, so an unknown algorithm surfaces at wiring time
// with the scorer's own error.
func (c *RunConfig) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateOptions()
}

// validateSources requires at least one well formed source and a topic
// whenever a provider-backed kind is declared.
func (c *RunConfig) validateSources() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}

	needsTopic := false
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			name := src.Name
			if name == "" {
				name = src.URL
			}
			return fmt.Errorf("source %d (%s): %w", i, name, err)
		}
		if src.Kind == entity.SourceKindAcademic || src.Kind == entity.SourceKindEvents {
			needsTopic = true
		}
	}

	if needsTopic && c.Topic == "" {
		return errors.New("topic is required when academic or events sources are declared")
	}
	return nil
}

// validateOptions checks everything below the source list.
func (c *RunConfig) validateOptions() error {
	if c.Output.RawDir == "" {
		return errors.New("output.raw_dir must not be empty")
	}
	if c.Output.Corpus == "" {
		return errors.New("output.corpus must not be empty")
	}

	if c.Dedupe.Threshold < 0 || c.Dedupe.Threshold > 1 {
		return fmt.Errorf("dedupe.threshold must be within [0,1], got %g", c.Dedupe.Threshold)
	}
	if c.Dedupe.WindowDays < 0 {
		return fmt.Errorf("dedupe.window_days must not be negative, got %d", c.Dedupe.WindowDays)
	}
	if c.Extraction.Budget < 0 {
		return fmt.Errorf("extraction.budget must not be negative, got %v", c.Extraction.Budget.Std())
	}
	if c.Extraction.Parallelism < 0 {
		return fmt.Errorf("extraction.parallelism must not be negative, got %d", c.Extraction.Parallelism)
	}
	if c.Extraction.MaxExcerptRunes < 0 {
		return fmt.Errorf("extraction.max_excerpt_runes must not be negative, got %d", c.Extraction.MaxExcerptRunes)
	}
	if c.Providers.PerPage < 0 {
		return fmt.Errorf("providers.per_page must not be negative, got %d", c.Providers.PerPage)
	}
	if c.Providers.MaxRecords < 0 {
		return fmt.Errorf("providers.max_records must not be negative, got %d", c.Providers.MaxRecords)
	}
	if c.Harvest.Parallelism < 0 {
		return fmt.Errorf("harvest.parallelism must not be negative, got %d", c.Harvest.Parallelism)
	}

	return nil
}
