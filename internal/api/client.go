// Package api provides the Anthropic-backed reasoning delegate that
// fleet agents use to produce results.
package api

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/skein-dev/skein/internal/router"
)

// Client wraps the Anthropic SDK client and reports usage to the
// fleet's model router.
type Client struct {
	inner anthropic.Client
	rtr   router.Router
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// APIKey is the Anthropic API key. If empty, uses the
	// ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// Router selects models per tier and accumulates usage. Required.
	Router router.Router
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("api client: Router is required")
	}

	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &Client{
		inner: anthropic.NewClient(opts...),
		rtr:   cfg.Router,
	}, nil
}

// Router returns the model router this client reports usage to.
func (c *Client) Router() router.Router {
	return c.rtr
}

// sdk returns the underlying Anthropic client for internal API access.
func (c *Client) sdk() *anthropic.Client {
	return &c.inner
}

// resolveModel picks the model for a tier and translates it for Bedrock
// when the selection is not already in Bedrock inference-profile form.
func (c *Client) resolveModel(tier router.Tier, useBedrock bool) anthropic.Model {
	model := c.rtr.SelectModel(tier)
	if useBedrock && !strings.HasPrefix(string(model), "us.anthropic") {
		model = translateModelForBedrock(model)
	}
	return model
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format:
// us.anthropic.{model}-v1:0.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514: "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaude3_5Haiku20241022: "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805: "us.anthropic.claude-opus-4-1-20250805-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	// Unknown names pass through; they may already be Bedrock format or
	// a custom model id.
	return model
}
