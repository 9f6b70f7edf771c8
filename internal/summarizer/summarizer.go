// Package summarizer asks an OpenAI-compatible chat model to describe a repository
// from its assembled context.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/temirov/reposum/internal/types"
)

const (
	DefaultBaseURL     = "https://api.studio.nebius.com/v1/"
	DefaultModel       = "meta-llama/Llama-3.3-70B-Instruct"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 800
	DefaultMaxAttempts = 3
)

var (
	// ErrMissingAPIKey reports that no model API key was configured.
	ErrMissingAPIKey = errors.New("NEBIUS_API_KEY is not set")
	// ErrUpstreamModel wraps every failure of the model endpoint.
	ErrUpstreamModel = errors.New("summarizer model failed")
)

var (
	authenticationPattern = regexp.MustCompile(`(?i)authenticat|unauthori[sz]ed|\b401\b`)
	codeFencePattern      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxAttempts int
	HTTPClient  *http.Client
}

// Client produces structured repository summaries.
type Client struct {
	generator   contentGenerator
	model       string
	temperature float64
	maxTokens   int
	maxAttempts int
	logger      *zap.Logger
}

// NewClient connects to the configured OpenAI-compatible endpoint.
func NewClient(options Options, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(options.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	options = withDefaults(options)
	clientOptions := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithBaseURL(options.BaseURL),
		openai.WithModel(options.Model),
	}
	if options.HTTPClient != nil {
		clientOptions = append(clientOptions, openai.WithHTTPClient(options.HTTPClient))
	}
	llm, err := openai.New(clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	return newClientWithGenerator(llm, options, logger), nil
}

func newClientWithGenerator(generator contentGenerator, options Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	options = withDefaults(options)
	return &Client{
		generator:   generator,
		model:       options.Model,
		temperature: options.Temperature,
		maxTokens:   options.MaxTokens,
		maxAttempts: options.MaxAttempts,
		logger:      logger,
	}
}

func withDefaults(options Options) Options {
	if strings.TrimSpace(options.BaseURL) == "" {
		options.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(options.Model) == "" {
		options.Model = DefaultModel
	}
	if options.Temperature <= 0 {
		options.Temperature = DefaultTemperature
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = DefaultMaxTokens
	}
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = DefaultMaxAttempts
	}
	return options
}

// Model returns the model name requests are sent to.
func (client *Client) Model() string {
	return client.model
}

// Summarize sends the context to the model. Replies that are empty or not a JSON
// object are re-asked up to the configured number of attempts; transport errors
// fail immediately.
func (client *Client) Summarize(ctx context.Context, reference types.RepositoryReference, contextText string) (types.Summary, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(reference, contextText)),
	}
	var lastParseErr error
	for attempt := 1; attempt <= client.maxAttempts; attempt++ {
		response, generateErr := client.generator.GenerateContent(ctx, messages,
			llms.WithTemperature(client.temperature),
			llms.WithMaxTokens(client.maxTokens),
		)
		if generateErr != nil {
			client.logger.Error("model call failed", zap.String("repository", reference.String()), zap.Error(generateErr))
			return types.Summary{}, fmt.Errorf("%w: %w", ErrUpstreamModel, generateErr)
		}
		summary, parseErr := parseReply(response)
		if parseErr == nil {
			return summary, nil
		}
		lastParseErr = parseErr
		client.logger.Warn("model reply rejected",
			zap.String("repository", reference.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", client.maxAttempts),
			zap.Error(parseErr),
		)
	}
	return types.Summary{}, fmt.Errorf("%w: reply rejected after %d attempts: %w", ErrUpstreamModel, client.maxAttempts, lastParseErr)
}

func parseReply(response *llms.ContentResponse) (types.Summary, error) {
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return types.Summary{}, errors.New("model returned no choices")
	}
	raw := strings.TrimSpace(response.Choices[0].Content)
	if matches := codeFencePattern.FindStringSubmatch(raw); matches != nil {
		raw = matches[1]
	}
	if raw == "" {
		return types.Summary{}, errors.New("model returned an empty reply")
	}
	if !strings.HasPrefix(raw, "{") {
		return types.Summary{}, errors.New("model reply is not a JSON object")
	}
	var summary types.Summary
	if decodeErr := json.Unmarshal([]byte(raw), &summary); decodeErr != nil {
		return types.Summary{}, fmt.Errorf("decode model reply: %w", decodeErr)
	}
	if summary.Technologies == nil {
		summary.Technologies = []string{}
	}
	return summary, nil
}

// IsAuthenticationError reports whether err looks like the model endpoint
// rejected the configured credentials.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	return authenticationPattern.MatchString(err.Error())
}
