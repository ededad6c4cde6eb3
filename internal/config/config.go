package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
// Las credenciales de proveedores no son obligatorias al arrancar: si faltan,
// cada cliente devuelve un ConfigurationError en el momento de la llamada.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8000"`

	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMBaseURL     string  `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"gpt-4-turbo"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	LLMMaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"1000"`

	FirefliesAPIKey  string `env:"FIREFLIES_API_KEY"`
	FirefliesBaseURL string `env:"FIREFLIES_BASE_URL" envDefault:"https://api.fireflies.ai/graphql"`

	JiraBaseURL    string `env:"JIRA_BASE_URL"`
	JiraEmail      string `env:"JIRA_EMAIL"`
	JiraAPIToken   string `env:"JIRA_API_TOKEN"`
	JiraProjectKey string `env:"JIRA_PROJECT_KEY"`
	JiraIssueType  string `env:"JIRA_ISSUE_TYPE" envDefault:"Story"`

	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	TranscriptCacheTTL time.Duration `env:"TRANSCRIPT_CACHE_TTL" envDefault:"1h"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	OTelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelHeaders     string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"story-assistant"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.LLMBaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")
	cfg.JiraBaseURL = strings.TrimRight(cfg.JiraBaseURL, "/")
	return &cfg, nil
}

// TracingEnabled indica si hay un endpoint OTLP configurado.
func (c *Config) TracingEnabled() bool {
	return strings.TrimSpace(c.OTelEndpoint) != ""
}

// AllowAllOrigins es true cuando CORS acepta cualquier origen.
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.CORSAllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return len(c.CORSAllowedOrigins) == 0
}
