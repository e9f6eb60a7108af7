package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/vector/zilliz"
	"github.com/CedricPei/MAS-RAG/pkg/config"
	"github.com/CedricPei/MAS-RAG/pkg/utils"
)

// VectorStore receives embedded chunks.
type VectorStore interface {
	Insert(ctx context.Context, chunks []zilliz.DocumentChunk) error
}

// EmbeddingCache is keyed by the hash of the embedded text.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

// Indexer chunks synthesized documents, embeds the chunks and stores them so
// the documents can be retrieved the way a multi-hop system would.
type Indexer struct {
	store        VectorStore
	embedder     oracle.Embedder
	cache        EmbeddingCache
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Indexer)

func WithEmbeddingCache(c EmbeddingCache) Option {
	return func(ix *Indexer) { ix.cache = c }
}

func NewIndexer(store VectorStore, embedder oracle.Embedder, cfg config.MilvusConfig, logger *zap.Logger, opts ...Option) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Indexer{
		store:        store,
		embedder:     embedder,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       logger,
		now:          time.Now,
	}
	if ix.chunkSize <= 0 {
		ix.chunkSize = 1000
	}
	if ix.chunkOverlap < 0 || ix.chunkOverlap >= ix.chunkSize {
		ix.chunkOverlap = 0
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type Stats struct {
	Documents int
	Skipped   int
	Chunks    int
	Cached    int
}

// IndexDocuments stores every record that carries a document. Records whose
// synthesis failed are counted as skipped.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []dataset.DocumentRecord) (Stats, error) {
	var stats Stats
	for _, rec := range docs {
		if rec.Doc == nil || strings.TrimSpace(*rec.Doc) == "" {
			stats.Skipped++
			continue
		}

		chunks := ChunkText(*rec.Doc, ix.chunkSize, ix.chunkOverlap)
		embeddings, cached, err := ix.embed(ctx, chunks)
		if err != nil {
			return stats, fmt.Errorf("failed to embed record %d of %s: %w", rec.ID, rec.DBID, err)
		}

		now := ix.now()
		vectorChunks := make([]zilliz.DocumentChunk, len(chunks))
		for i, text := range chunks {
			vectorChunks[i] = zilliz.DocumentChunk{
				ID:         ChunkID(rec.DBID, rec.ID, i),
				Embedding:  embeddings[i],
				Text:       text,
				DBID:       rec.DBID,
				RecordID:   int64(rec.ID),
				ChunkIndex: int64(i),
				DocType:    dataset.Deref(rec.DocType),
				Timestamp:  now,
			}
		}

		if err := ix.store.Insert(ctx, vectorChunks); err != nil {
			return stats, fmt.Errorf("failed to insert record %d of %s: %w", rec.ID, rec.DBID, err)
		}

		stats.Documents++
		stats.Chunks += len(vectorChunks)
		stats.Cached += cached
		metrics.DocumentsIndexed.Add(float64(len(vectorChunks)))

		ix.logger.Debug("Document indexed",
			zap.String("db_id", rec.DBID),
			zap.Int("record_id", rec.ID),
			zap.Int("chunks", len(vectorChunks)),
		)
	}

	ix.logger.Info("Documents indexed",
		zap.Int("documents", stats.Documents),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
	)
	return stats, nil
}

// embed returns one vector per text, consulting the cache first. The int is
// the number of cache hits.
func (ix *Indexer) embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	out := make([][]float32, len(texts))
	var missing []int
	hits := 0

	for i, text := range texts {
		if ix.cache == nil {
			missing = append(missing, i)
			continue
		}
		vec, ok, err := ix.cache.GetEmbedding(ctx, utils.HashString(text))
		if err != nil {
			ix.logger.Warn("Embedding cache read failed", zap.Error(err))
		}
		if ok {
			out[i] = vec
			hits++
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			continue
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return out, hits, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vectors, err := ix.embedder.Embed(ctx, batch)
	if err != nil {
		return nil, hits, err
	}
	if len(vectors) != len(batch) {
		return nil, hits, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(batch))
	}

	for j, i := range missing {
		out[i] = vectors[j]
		if ix.cache != nil {
			if err := ix.cache.SetEmbedding(ctx, utils.HashString(texts[i]), vectors[j]); err != nil {
				ix.logger.Warn("Embedding cache write failed", zap.Error(err))
			}
		}
	}
	return out, hits, nil
}

// ChunkText splits text on word boundaries into chunks of at most size bytes
// (a single longer word becomes its own chunk). Each chunk after the first
// starts with the trailing words of the previous one, up to overlap bytes.
func ChunkText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, word := range words {
		added := len(word)
		if len(current) > 0 {
			added++
		}

		if currentLen+added > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = tail(current, overlap)
			currentLen = len(strings.Join(current, " "))
			added = len(word)
			if len(current) > 0 {
				added++
			}
			if currentLen+added > size {
				current, currentLen, added = nil, 0, len(word)
			}
		}

		current = append(current, word)
		currentLen += added
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// tail returns the longest suffix of words whose joined length is at most n.
func tail(words []string, n int) []string {
	length := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := len(words[i])
		if start < len(words) {
			add++
		}
		if length+add > n {
			break
		}
		length += add
		start = i
	}
	return append([]string(nil), words[start:]...)
}

// ChunkID is stable across re-indexing so repeated runs address the same chunk.
func ChunkID(dbID string, recordID, index int) string {
	return utils.HashParts(dbID, strconv.Itoa(recordID), strconv.Itoa(index))
}
