package fireflies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"story-assistant/internal/domain"
)

const (
	providerName   = "fireflies"
	defaultBaseURL = "https://api.fireflies.ai/graphql"
)

const listTranscriptsQuery = `query Transcripts($limit: Int) {
  transcripts(limit: $limit) {
    id
    title
  }
}`

const getTranscriptQuery = `query Transcript($transcriptId: String!) {
  transcript(id: $transcriptId) {
    id
    title
    sentences {
      text
    }
  }
}`

// Source es el contrato de lectura de transcripciones.
type Source interface {
	ListTranscripts(ctx context.Context, limit int) ([]domain.TranscriptSummary, error)
	GetTranscript(ctx context.Context, id string) (string, error)
}

// Client consulta la API GraphQL de Fireflies.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient construye un cliente; httpClient nil usa http.DefaultClient.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
		logger:  logger,
	}
}

// ListTranscripts devuelve las transcripciones en el orden del proveedor.
func (c *Client) ListTranscripts(ctx context.Context, limit int) ([]domain.TranscriptSummary, error) {
	var data struct {
		Transcripts []domain.TranscriptSummary `json:"transcripts"`
	}
	if err := c.query(ctx, listTranscriptsQuery, map[string]any{"limit": limit}, &data); err != nil {
		return nil, err
	}
	if data.Transcripts == nil {
		return nil, &domain.ProviderError{Provider: providerName, Message: "malformed payload: missing transcripts"}
	}
	return data.Transcripts, nil
}

// GetTranscript une el texto de cada frase con saltos de línea, respetando el orden.
func (c *Client) GetTranscript(ctx context.Context, id string) (string, error) {
	var data struct {
		Transcript *struct {
			ID        string `json:"id"`
			Sentences []struct {
				Text string `json:"text"`
			} `json:"sentences"`
		} `json:"transcript"`
	}
	if err := c.query(ctx, getTranscriptQuery, map[string]any{"transcriptId": id}, &data); err != nil {
		return "", err
	}
	if data.Transcript == nil {
		return "", &domain.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed payload: transcript %s missing", id)}
	}

	lines := make([]string, 0, len(data.Transcript.Sentences))
	for _, s := range data.Transcript.Sentences {
		lines = append(lines, s.Text)
	}
	return strings.Join(lines, "\n"), nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return &domain.ConfigurationError{Setting: "FIREFLIES_API_KEY"}
	}

	bodyBytes, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Provider: providerName, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("fireflies error status", zap.Int("status", resp.StatusCode), zap.String("body", string(respBody)))
		return &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "Failed to fetch transcripts"}
	}

	var gr graphQLResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return &domain.ProviderError{Provider: providerName, Message: "malformed payload", Err: err}
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return &domain.ProviderError{Provider: providerName, Message: strings.Join(msgs, "; ")}
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return &domain.ProviderError{Provider: providerName, Message: "malformed payload: missing data"}
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return &domain.ProviderError{Provider: providerName, Message: "malformed payload", Err: err}
	}
	return nil
}
