package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/skein-dev/skein/internal/agent"
	"github.com/skein-dev/skein/internal/router"
)

const (
	// systemPrompt frames every delegate call. Agents communicate with
	// structured payloads, so the model must answer in JSON.
	systemPrompt = "You are an agent in a coordinated fleet. " +
		"Respond with a single JSON object and nothing else."

	// defaultMaxTokens bounds a single delegate response.
	defaultMaxTokens = 8192
)

// Delegate implements the agent reasoning contract on top of the
// Anthropic messages API. One Delegate per agent; the tier decides
// which model the router selects for its calls.
type Delegate struct {
	client     *Client
	tier       router.Tier
	useBedrock bool
	maxTokens  int64
}

var _ agent.Delegate = (*Delegate)(nil)

// DelegateConfig configures a Delegate.
type DelegateConfig struct {
	// Client is the shared API client. Required.
	Client *Client
	// Tier classifies the agent's work for model selection. Defaults
	// to the balanced tier.
	Tier router.Tier
	// UseAWSBedrock must match the client's transport so model names
	// translate correctly.
	UseAWSBedrock bool
	// MaxTokens bounds a single response when positive.
	MaxTokens int64
}

// NewDelegate creates a reasoning delegate for one agent.
func NewDelegate(cfg DelegateConfig) (*Delegate, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("api delegate: Client is required")
	}
	tier := cfg.Tier
	if tier == "" {
		tier = router.TierBalanced
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Delegate{
		client:     cfg.Client,
		tier:       tier,
		useBedrock: cfg.UseAWSBedrock,
		maxTokens:  maxTokens,
	}, nil
}

// Reason sends the instruction and context to the model and parses the
// structured response. Usage is reported to the router either way.
func (d *Delegate) Reason(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error) {
	prompt, err := buildPrompt(instruction, taskContext)
	if err != nil {
		return nil, fmt.Errorf("delegate: build prompt: %w", err)
	}

	model := d.client.resolveModel(d.tier, d.useBedrock)

	resp, err := d.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: d.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("delegate: %w", err)
	}

	d.client.rtr.RecordUsage(model, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return parseResult(text.String())
}

// buildPrompt renders the instruction plus the JSON-encoded context.
func buildPrompt(instruction string, taskContext map[string]interface{}) (string, error) {
	if len(taskContext) == 0 {
		return instruction, nil
	}
	raw, err := json.MarshalIndent(taskContext, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}
	return fmt.Sprintf("%s\n\nContext:\n%s", instruction, raw), nil
}

// parseResult extracts a JSON object from the model's reply. Models
// sometimes wrap the object in a code fence or prose; the parser takes
// the outermost braces. A reply with no object at all is preserved
// under a "text" key rather than dropped.
func parseResult(text string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		var result map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &result); err == nil {
			return result, nil
		}
	}

	if trimmed == "" {
		return nil, fmt.Errorf("delegate: empty response")
	}
	return map[string]interface{}{"text": trimmed}, nil
}
