package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
)

const (
	providerName  = "jira"
	searchJQLPath = "rest/api/3/search/jql"
)

// Config contiene las credenciales y el proyecto destino.
type Config struct {
	BaseURL    string
	Email      string
	APIToken   string
	ProjectKey string
	IssueType  string
}

// Client crea y busca issues en un único proyecto de Jira.
type Client struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

// NewClient construye el cliente; transport nil usa el transporte por defecto.
func NewClient(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Client {
	if cfg.IssueType == "" {
		cfg.IssueType = "Story"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, transport: transport, logger: logger}
}

// connect autentica un cliente nuevo para la llamada en curso.
func (c *Client) connect() (*gojira.Client, error) {
	switch {
	case strings.TrimSpace(c.cfg.BaseURL) == "":
		return nil, &domain.ConfigurationError{Setting: "JIRA_BASE_URL"}
	case strings.TrimSpace(c.cfg.Email) == "":
		return nil, &domain.ConfigurationError{Setting: "JIRA_EMAIL"}
	case strings.TrimSpace(c.cfg.APIToken) == "":
		return nil, &domain.ConfigurationError{Setting: "JIRA_API_TOKEN"}
	case strings.TrimSpace(c.cfg.ProjectKey) == "":
		return nil, &domain.ConfigurationError{Setting: "JIRA_PROJECT_KEY"}
	}

	tp := gojira.BasicAuthTransport{
		Username:  c.cfg.Email,
		Password:  c.cfg.APIToken,
		Transport: c.transport,
	}
	client, err := gojira.NewClient(tp.Client(), c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira client: %w", err)
	}
	return client, nil
}

// CreateIssue crea un issue y devuelve su key.
func (c *Client) CreateIssue(ctx context.Context, summary, description string, labels []string) (string, error) {
	client, err := c.connect()
	if err != nil {
		return "", err
	}
	return c.create(ctx, client, summary, description, labels)
}

// CreateStory crea un issue a partir de una historia de usuario.
func (c *Client) CreateStory(ctx context.Context, story domain.UserStory) (string, error) {
	return c.CreateIssue(ctx, story.Summary(), story.Description(), story.Tags)
}

// CreateIssuesBulk crea una historia por elemento, en orden. Se detiene en el
// primer error y devuelve las keys creadas hasta ese momento.
func (c *Client) CreateIssuesBulk(ctx context.Context, stories []domain.UserStory) ([]string, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(stories))
	for i, story := range stories {
		key, err := c.create(ctx, client, story.Summary(), story.Description(), story.Tags)
		if err != nil {
			c.logger.Warn("jira bulk create stopped",
				zap.Int("index", i),
				zap.Strings("created", keys),
				zap.Error(err),
			)
			return keys, fmt.Errorf("created %d of %d issues: %w", len(keys), len(stories), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// SearchRecent devuelve los últimos issues del proyecto, más recientes primero.
// Usa /rest/api/3/search/jql: Jira Cloud ya no sirve /rest/api/2/search.
func (c *Client) SearchRecent(ctx context.Context, limit int) ([]domain.Issue, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("jql", fmt.Sprintf(`project = "%s" ORDER BY created DESC`, c.cfg.ProjectKey))
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("fields", "summary,description,created")

	req, err := client.NewRequestWithContext(ctx, http.MethodGet, searchJQLPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jira search request: %w", err)
	}

	var result searchJQLResult
	resp, err := client.Do(req, &result)
	if err != nil {
		return nil, providerError(resp, err)
	}

	issues := make([]domain.Issue, 0, len(result.Issues))
	for _, item := range result.Issues {
		issues = append(issues, domain.Issue{
			Key:         item.Key,
			Summary:     item.Fields.Summary,
			Description: descriptionText(item.Fields.Description),
			Created:     time.Time(item.Fields.Created),
		})
	}
	return issues, nil
}

func (c *Client) create(ctx context.Context, client *gojira.Client, summary, description string, labels []string) (string, error) {
	issue := &gojira.Issue{
		Fields: &gojira.IssueFields{
			Project:     gojira.Project{Key: c.cfg.ProjectKey},
			Type:        gojira.IssueType{Name: c.cfg.IssueType},
			Summary:     summary,
			Description: description,
			Labels:      normalizeLabels(labels),
		},
	}

	created, resp, err := client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return "", providerError(resp, err)
	}
	if created == nil || created.Key == "" {
		return "", &domain.ProviderError{Provider: providerName, Message: "malformed payload: missing issue key"}
	}
	c.logger.Info("jira issue created", zap.String("key", created.Key))
	return created.Key, nil
}

// normalizeLabels reemplaza espacios: Jira no acepta labels con espacios.
func normalizeLabels(tags []string) []string {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "-")
		if tag == "" {
			continue
		}
		labels = append(labels, tag)
	}
	return labels
}

func providerError(resp *gojira.Response, err error) error {
	perr := &domain.ProviderError{Provider: providerName, Message: err.Error(), Err: err}
	if resp != nil && resp.Response != nil {
		perr.StatusCode = resp.StatusCode
	}
	return perr
}
