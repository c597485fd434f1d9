// Package cli implements the corpusmill command line: the harvest, merge,
// run, worker, and version verbs over one shared run configuration.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"corpusmill/internal/observability/logging"
)

// Version is the build version, set by main before Execute.
var Version = "dev"

// rootCmd is the base command; every verb hangs off it.
var rootCmd = &cobra.Command{
	Use:   "corpusmill",
	Short: "Longitudinal multi-source corpus assembly",
	Long: `Corpusmill assembles a longitudinal text corpus from syndication feeds,
event databases, academic indexes, and civic listing pages.

A run file (run.yaml by default) declares the topic, the sources, and the
knobs of each pipeline stage. The harvest verb stages raw batches, merge
normalizes and deduplicates them into the corpus file, and run does both
in one invocation.`,
	SilenceUsage:     true,
	PersistentPreRun: setupLogging,
}

// Execute wires the build version into the root command and runs it under
// a signal-aware context, so an interrupt cancels the running verb.
func Execute(version string) error {
	Version = version

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringP("config", "c", "run.yaml", "run configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", false, "JSON log output instead of text")

	for _, name := range []string{"config", "verbose", "json-logs"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", name, err))
		}
	}
}

// initEnv loads the optional .env file and binds CORPUSMILL_* environment
// variables, so CORPUSMILL_CONFIG and friends act as flag defaults.
func initEnv() {
	_ = godotenv.Load()

	viper.SetEnvPrefix("CORPUSMILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setupLogging configures the process logger from the persistent flags
// before any verb runs. Verbs log through slog.Default, like the services
// they wire.
func setupLogging(_ *cobra.Command, _ []string) {
	if viper.GetBool("verbose") {
		os.Setenv("LOG_LEVEL", "debug")
	}

	var logger *slog.Logger
	if viper.GetBool("json-logs") {
		logger = logging.NewLogger()
	} else {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)
}

// configPath resolves the run file path: flag, then CORPUSMILL_CONFIG,
// then the run.yaml default.
func configPath() string {
	return viper.GetString("config")
}
