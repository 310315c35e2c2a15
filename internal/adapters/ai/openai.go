package ai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"arbiter/internal/adapters/config"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// RetryConfig derives the retry policy for model calls from the AI settings.
// Unset knobs keep the package defaults.
func RetryConfig(cfg config.AIConfig) retry.Config {
	out := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		out.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBaseWait > 0 {
		out.BaseDelay = cfg.RetryBaseWait
	}
	return out
}

// Ensure OpenAIClient implements Client
var _ Client = (*OpenAIClient)(nil)

// OpenAIClient implements the LLM collaborator using the official OpenAI Go
// SDK. Requests are rate limited and bounded by a per-call timeout.
type OpenAIClient struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewOpenAIClient creates a new OpenAI-backed LLM client
func NewOpenAIClient(cfg config.AIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrValidation, "openai API key not configured")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	reqPerMinute := cfg.ReqPerMinute
	if reqPerMinute <= 0 {
		reqPerMinute = 300
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(rate.Limit(reqPerMinute/60.0), int(reqPerMinute/10)+1),
		log:         logger.Get().With("component", "openai_client", "model", cfg.Model),
	}, nil
}

// Generate sends one chat completion request
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimit, "rate limiter wait")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}

	temperature := c.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrTimeout, "openai completion")
		}
		if isRateLimited(err) {
			return nil, errors.Wrap(errors.ErrRateLimit, err.Error())
		}
		return nil, errors.Wrapf(errors.ErrAIService, "openai completion: %v", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrAIService, "openai returned no choices")
	}

	c.log.Debugf("Completion finished (duration: %v, tokens: %d)",
		time.Since(start), resp.Usage.TotalTokens)

	return &GenerateResponse{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429") ||
		strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
