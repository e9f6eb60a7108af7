package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/pkg/circuitbreaker"
	"github.com/CedricPei/MAS-RAG/pkg/config"
	"github.com/CedricPei/MAS-RAG/pkg/logger"
	"github.com/CedricPei/MAS-RAG/pkg/retry"
)

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	maxTokens      int32
	timeout        time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.Model),
		zap.String("embedding_model", embeddingModel),
	)

	return &GeminiClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: embeddingModel,
		maxTokens:      int32(cfg.MaxTokens),
		timeout:        timeout(cfg),
		cb:             newBreaker("gemini", logger.GetLogger()),
		retryConfig:    newRetryConfig(logger.GetLogger()),
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini:" + c.model }

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Format == FormatJSONObject {
		genConfig.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	var content string
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), genConfig)
			if err != nil {
				return fmt.Errorf("GenAI generate failed: %w", err)
			}

			if resp.UsageMetadata != nil {
				metrics.OracleTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.UsageMetadata.PromptTokenCount))
				metrics.OracleTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.UsageMetadata.CandidatesTokenCount))
			}

			content = resp.Text()
			return nil
		})
	})
	observe("gemini", start, err)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var embeddings [][]float32
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			result, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
				TaskType: "RETRIEVAL_DOCUMENT",
			})
			if err != nil {
				return fmt.Errorf("GenAI batch embed failed: %w", err)
			}
			if len(result.Embeddings) != len(texts) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(result.Embeddings), len(texts))
			}
			embeddings = make([][]float32, len(result.Embeddings))
			for i, emb := range result.Embeddings {
				embeddings[i] = emb.Values
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}
