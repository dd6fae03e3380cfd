package model

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// Config is the complete seedloop configuration. It is loaded by viper from
// ~/.seedloop/config.yaml, SEEDLOOP_* variables and CLI flags.
type Config struct {
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Extractor    ExtractorConfig    `yaml:"extractor" mapstructure:"extractor"`
	Prediction   PredictionConfig   `yaml:"prediction" mapstructure:"prediction"`
	Corpus       CorpusConfig       `yaml:"corpus" mapstructure:"corpus"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// PipelineConfig controls the bootstrap loop
type PipelineConfig struct {
	EvidenceThreshold    float64 `yaml:"evidence_threshold" mapstructure:"evidence_threshold"`
	FactThreshold        float64 `yaml:"fact_threshold" mapstructure:"fact_threshold"`
	SortQuestionsBy      string  `yaml:"sort_questions_by" mapstructure:"sort_questions_by"` // score, certainty
	DropGuessesEachRound bool    `yaml:"drop_guesses_each_round" mapstructure:"drop_guesses_each_round"`
}

// ExtractorConfig selects the fact extractor algorithm and its hyperparameters
type ExtractorConfig struct {
	Algorithm   string             `yaml:"algorithm" mapstructure:"algorithm"` // naivebayes, labelspreading, llm
	Hyperparams map[string]float64 `yaml:"hyperparams,omitempty" mapstructure:"hyperparams"`
}

// PredictionConfig controls how trained extractors score evidence
type PredictionConfig struct {
	Method       string    `yaml:"method" mapstructure:"method"`                           // probabilistic, binary
	ScaleToRange []float64 `yaml:"scale_to_range,omitempty" mapstructure:"scale_to_range"` // [min, max] or empty
}

// CorpusConfig locates the SQLite corpus
type CorpusConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig controls the prediction cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig configures the LLM judge extractor
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// HTTPConfig configures document fetching during ingestion
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RateLimitingConfig limits requests per host (documents and LLM endpoints)
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls logging and rendering
type OutputConfig struct {
	Verbose  bool `yaml:"verbose" mapstructure:"verbose"`
	JSONLogs bool `yaml:"json_logs" mapstructure:"json_logs"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			EvidenceThreshold:    0.85,
			FactThreshold:        0.5,
			SortQuestionsBy:      "score",
			DropGuessesEachRound: false,
		},
		Extractor: ExtractorConfig{
			Algorithm:   "naivebayes",
			Hyperparams: map[string]float64{"alpha": 1, "window": 2},
		},
		Prediction: PredictionConfig{
			Method: "probabilistic",
		},
		Corpus: CorpusConfig{
			Path: "seedloop.db",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".seedloop-cache",
			TTL:     7 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 16,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "seedloop/0.1 (+https://github.com/ppiankov/seedloop)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}

// Validate checks that thresholds and enumerations are usable
func (c *Config) Validate() error {
	if c.Pipeline.EvidenceThreshold < 0 || c.Pipeline.EvidenceThreshold > 1 {
		return errors.Newf("evidence_threshold must be in [0,1], got %v", c.Pipeline.EvidenceThreshold)
	}
	if c.Pipeline.FactThreshold < 0 || c.Pipeline.FactThreshold > 1 {
		return errors.Newf("fact_threshold must be in [0,1], got %v", c.Pipeline.FactThreshold)
	}
	switch c.Pipeline.SortQuestionsBy {
	case "score", "certainty":
	default:
		return errors.Newf("sort_questions_by must be score or certainty, got %q", c.Pipeline.SortQuestionsBy)
	}
	switch c.Prediction.Method {
	case "probabilistic", "binary":
	default:
		return errors.Newf("prediction method must be probabilistic or binary, got %q", c.Prediction.Method)
	}
	if r := c.Prediction.ScaleToRange; len(r) != 0 && len(r) != 2 {
		return errors.Newf("scale_to_range needs exactly two values, got %d", len(r))
	}
	for _, b := range c.Prediction.ScaleToRange {
		if math.IsNaN(b) || b < 0 || b > 1 {
			return errors.Newf("scale_to_range values must be in [0,1], got %v", c.Prediction.ScaleToRange)
		}
	}
	return nil
}
