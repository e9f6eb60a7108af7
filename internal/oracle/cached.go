package oracle

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/pkg/utils"
)

// ResponseCache stores raw oracle replies by key.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string) (string, bool, error)
	SetResponse(ctx context.Context, key string, raw string) error
}

// Cached serves repeated temperature-0 requests from a ResponseCache. Sampled
// requests always reach the oracle so that resampling still yields new output.
type Cached struct {
	next      Oracle
	cache     ResponseCache
	namespace string
	logger    *zap.Logger
}

func NewCached(next Oracle, cache ResponseCache, namespace string, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, namespace: namespace, logger: logger}
}

func CacheKey(namespace string, req Request) string {
	return utils.HashParts(namespace, string(req.Format), req.System, req.User)
}

func (c *Cached) Generate(ctx context.Context, req Request) (string, error) {
	if req.Temperature != 0 {
		return c.next.Generate(ctx, req)
	}

	key := CacheKey(c.namespace, req)
	raw, ok, err := c.cache.GetResponse(ctx, key)
	if err != nil {
		c.logger.Warn("Oracle cache lookup failed", zap.Error(err))
	} else if ok {
		metrics.CacheHits.WithLabelValues("oracle").Inc()
		return raw, nil
	}
	metrics.CacheMisses.WithLabelValues("oracle").Inc()

	raw, err = c.next.Generate(ctx, req)
	if err != nil {
		return raw, err
	}

	if strings.TrimSpace(raw) != "" {
		if err := c.cache.SetResponse(ctx, key, raw); err != nil {
			c.logger.Warn("Oracle cache store failed", zap.Error(err))
		}
	}
	return raw, nil
}
