package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/pkg/circuitbreaker"
	"github.com/CedricPei/MAS-RAG/pkg/config"
	"github.com/CedricPei/MAS-RAG/pkg/retry"
)

// Format is the response shape requested from the provider.
type Format string

const (
	FormatJSONObject Format = "json_object"
	FormatText       Format = "text"
)

type Request struct {
	System      string
	User        string
	Format      Format
	Temperature float32
}

// Oracle turns a prompt into raw response text. Callers never trust the text
// to be well formed; see Parse.
type Oracle interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Provider is an Oracle that can also embed text.
type Provider interface {
	Oracle
	Embedder
	Name() string
}

// New builds the provider named in cfg.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini", "genai", "google":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newBreaker(name string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Logger:           logger,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

func newRetryConfig(logger *zap.Logger) retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       20 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger,
	}
}

func timeout(cfg config.LLMConfig) time.Duration {
	if cfg.TimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.TimeoutSec) * time.Second
}

func observe(provider string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.OracleDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}
