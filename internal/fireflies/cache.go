package fireflies

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
)

type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedClient guarda el texto de cada transcripción en Redis. El listado
// siempre va al proveedor. Los fallos de Redis no interrumpen la lectura.
type CachedClient struct {
	next   Source
	store  cacheStore
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedClient devuelve next sin cambios si no hay cliente Redis.
func NewCachedClient(next Source, client *redis.Client, ttl time.Duration, logger *zap.Logger) Source {
	if client == nil {
		return next
	}
	return newCachedClient(next, client, ttl, logger)
}

func newCachedClient(next Source, store cacheStore, ttl time.Duration, logger *zap.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClient{
		next:   next,
		store:  store,
		ttl:    ttl,
		prefix: "fireflies:transcript:",
		logger: logger,
	}
}

func (c *CachedClient) ListTranscripts(ctx context.Context, limit int) ([]domain.TranscriptSummary, error) {
	return c.next.ListTranscripts(ctx, limit)
}

func (c *CachedClient) GetTranscript(ctx context.Context, id string) (string, error) {
	key := c.prefix + strings.TrimSpace(id)

	cached, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("transcript cache read failed", zap.Error(err), zap.String("transcript_id", id))
	}

	text, err := c.next.GetTranscript(ctx, id)
	if err != nil {
		return "", err
	}
	// Las transcripciones vacías suelen estar aún en proceso.
	if text != "" {
		if err := c.store.Set(ctx, key, text, c.ttl).Err(); err != nil {
			c.logger.Warn("transcript cache write failed", zap.Error(err), zap.String("transcript_id", id))
		}
	}
	return text, nil
}
