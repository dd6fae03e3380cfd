package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnparseable is returned when a model answer carries no usable judgment
var ErrUnparseable = errors.New("unparseable judgment")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Judge asks the model whether a text segment manifests a relation
	Judge(ctx context.Context, req JudgeRequest) (*JudgeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Example is a labeled segment shown to the model as a few-shot demonstration
type Example struct {
	Text     string
	E1       string
	E2       string
	Positive bool
}

// JudgeRequest contains the input for one relation judgment
type JudgeRequest struct {
	// Relation is the relation label, e.g. "works_at"
	Relation string

	// Text is the segment text
	Text string

	// E1 and E2 are the surface forms of the two entity occurrences
	E1 string
	E2 string

	// Examples are few-shot demonstrations drawn from labeled evidence
	Examples []Example

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// JudgeResponse contains the model's judgment
type JudgeResponse struct {
	// Probability that the segment manifests the relation
	Probability float64

	// Raw is the trimmed model output
	Raw string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 16,
	}
}

const systemPrompt = "You classify whether a sentence expresses a given relation between two marked entities. Answer with a single probability between 0 and 1."

// BuildPrompt constructs the default judgment prompt
func BuildPrompt(req JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Relation: %s\n\n", req.Relation)

	if len(req.Examples) > 0 {
		b.WriteString("Examples:\n")
		for i, ex := range req.Examples {
			if i >= 10 { // Keep prompts short
				break
			}
			answer := "0"
			if ex.Positive {
				answer = "1"
			}
			fmt.Fprintf(&b, "- Text: %q\n  E1: %s\n  E2: %s\n  Answer: %s\n", ex.Text, ex.E1, ex.E2, answer)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Text: %q\nE1: %s\nE2: %s\n\n", req.Text, req.E1, req.E2)
	fmt.Fprintf(&b, "Does the text state that %s %s %s? Reply with only a number between 0 and 1.", req.E1, req.Relation, req.E2)
	return b.String()
}

var numberPattern = regexp.MustCompile(`\d*\.?\d+`)

// ParseProbability extracts a probability from a model answer. It accepts a
// leading yes/no or the first number in the text, clamped to [0,1].
func ParseProbability(text string) (float64, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(t, "yes"):
		return 1, nil
	case strings.HasPrefix(t, "no"):
		return 0, nil
	}

	m := numberPattern.FindString(t)
	if m == "" {
		return 0, errors.Wrapf(ErrUnparseable, "%q", text)
	}
	p, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrUnparseable, "%q", text)
	}
	if p > 1 && p <= 100 && strings.Contains(t, "%") {
		p /= 100
	}
	return min(1, max(0, p)), nil
}

// resolveModelAndTokens applies request, config and provider defaults
func resolveModelAndTokens(req JudgeRequest, cfg Config, defaultModel string) (string, int) {
	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 16
	}
	return model, maxTokens
}
