package llm

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
)

const providerName = "openai"

// Options agrupa la configuración inmutable del cliente.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// OpenAIClient implementa Client sobre la API de chat completions.
type OpenAIClient struct {
	client      openai.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIClient construye el cliente. Los reintentos del SDK quedan
// deshabilitados: cada llamada es un único intento.
func NewOpenAIClient(opts Options, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4-turbo"
	}
	return &OpenAIClient{
		client:      openai.NewClient(reqOpts...),
		apiKey:      opts.APIKey,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", c.providerError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: providerName, Message: "no choices in response"}
	}

	c.logger.Debug("llm completion",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.ready(); err != nil {
			yield("", err)
			return
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			// El consumidor se fue: cerrar sin error.
			if ctx.Err() != nil {
				c.logger.Debug("llm stream cancelled", zap.Error(ctx.Err()))
				return
			}
			yield("", c.providerError(err))
		}
	}
}

func (c *OpenAIClient) ready() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return &domain.ConfigurationError{Setting: "LLM_API_KEY"}
	}
	return nil
}

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = openai.Float(temperature)

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	return params
}

func (c *OpenAIClient) providerError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		c.logger.Warn("llm error status", zap.Int("status", apiErr.StatusCode), zap.String("message", msg))
		return &domain.ProviderError{Provider: providerName, StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &domain.ProviderError{Provider: providerName, Message: err.Error(), Err: err}
}
