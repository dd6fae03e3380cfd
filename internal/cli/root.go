package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool
	dbPath   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "seedloop",
	Short: "Seedloop - bootstrapped relation extraction with a human in the loop",
	Long: `Seedloop learns to recognize relations between entities in a text corpus.

Starting from a handful of seed facts it finds every place in the corpus where
such a fact could be stated, asks you to confirm or reject the most promising
ones, trains a classifier per relation from your answers and accepts the
evidence the classifier is confident about. Each round feeds the next.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(viper.GetBool("output.json_logs"), viper.GetBool("output.verbose"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of seedloop.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("seedloop v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.seedloop/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "corpus database path (default: seedloop.db)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	_ = viper.BindPFlag("corpus.path", rootCmd.PersistentFlags().Lookup("db"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".seedloop"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SEEDLOOP_PIPELINE_FACT_THRESHOLD overrides pipeline.fact_threshold
	viper.SetEnvPrefix("SEEDLOOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(model.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default so AutomaticEnv can see the keys
func setDefaults(cfg *model.Config) {
	viper.SetDefault("pipeline.evidence_threshold", cfg.Pipeline.EvidenceThreshold)
	viper.SetDefault("pipeline.fact_threshold", cfg.Pipeline.FactThreshold)
	viper.SetDefault("pipeline.sort_questions_by", cfg.Pipeline.SortQuestionsBy)
	viper.SetDefault("pipeline.drop_guesses_each_round", cfg.Pipeline.DropGuessesEachRound)
	viper.SetDefault("extractor.algorithm", cfg.Extractor.Algorithm)
	viper.SetDefault("extractor.hyperparams", cfg.Extractor.Hyperparams)
	viper.SetDefault("prediction.method", cfg.Prediction.Method)
	viper.SetDefault("prediction.scale_to_range", cfg.Prediction.ScaleToRange)
	viper.SetDefault("corpus.path", cfg.Corpus.Path)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.ttl", cfg.Cache.TTL)
	viper.SetDefault("llm.provider", cfg.LLM.Provider)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.api_key", cfg.LLM.APIKey)
	viper.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	viper.SetDefault("http.timeout", cfg.HTTP.Timeout)
	viper.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	viper.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	viper.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	viper.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	viper.SetDefault("http.respect_robots", cfg.HTTP.RespectRobots)
	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)
	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
	viper.SetDefault("output.json_logs", cfg.Output.JSONLogs)
}

// loadConfig resolves the effective configuration: flags, SEEDLOOP_*
// variables, the config file and defaults, in that order
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}

	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(err, "check ~/.seedloop/config.yaml or run 'seedloop config show'")
	}
	return cfg, nil
}
