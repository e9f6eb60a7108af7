package zilliz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/pkg/config"
	"github.com/CedricPei/MAS-RAG/pkg/logger"
)

// Client stores synthesized document chunks in a Milvus/Zilliz collection.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type DocumentChunk struct {
	ID         string
	Embedding  []float32
	Text       string
	DBID       string
	RecordID   int64
	ChunkIndex int64
	DocType    string
	Timestamp  time.Time
}

type SearchResult struct {
	ChunkID  string
	Text     string
	DBID     string
	RecordID int64
	DocType  string
	Score    float32
}

// Filter narrows a search. Empty fields match everything.
type Filter struct {
	DBID    string
	DocType string
}

func NewClient(ctx context.Context, cfg config.MilvusConfig, vectorDim int) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("collection", cfg.CollectionName),
	)

	return &Client{
		client:         c,
		collectionName: cfg.CollectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) schema() *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": fmt.Sprintf("%d", maxLen)},
		}
	}

	chunkID := varchar("chunk_id", 64)
	chunkID.PrimaryKey = true

	return &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Synthesized multi-hop documents",
		Fields: []*entity.Field{
			chunkID,
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", z.vectorDim)},
			},
			varchar("text", 8192),
			varchar("db_id", 128),
			{Name: "record_id", DataType: entity.FieldTypeInt64},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			varchar("doc_type", 64),
			{Name: "timestamp", DataType: entity.FieldTypeInt64},
		},
	}
}

func (z *Client) CreateCollection(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", z.collectionName))
		return nil
	}

	if err := z.client.CreateCollection(ctx, z.schema(), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := z.client.CreateIndex(ctx, z.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", z.collectionName))
	return nil
}

func (z *Client) Insert(ctx context.Context, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	dbIDs := make([]string, len(chunks))
	recordIDs := make([]int64, len(chunks))
	indexes := make([]int64, len(chunks))
	docTypes := make([]string, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		if len(chunk.Embedding) != z.vectorDim {
			return fmt.Errorf("chunk %s has dimension %d, collection expects %d", chunk.ID, len(chunk.Embedding), z.vectorDim)
		}
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		dbIDs[i] = chunk.DBID
		recordIDs[i] = chunk.RecordID
		indexes[i] = chunk.ChunkIndex
		docTypes[i] = chunk.DocType
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := z.client.Insert(
		ctx,
		z.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", z.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("db_id", dbIDs),
		entity.NewColumnInt64("record_id", recordIDs),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("doc_type", docTypes),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := z.client.Flush(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))
	return nil
}

func (z *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	expr := filterExpr(filter)

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := z.client.Search(
		ctx,
		z.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "db_id", "record_id", "doc_type"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := sr.Fields.GetColumn("chunk_id").GetAsString(i)
			text, _ := sr.Fields.GetColumn("text").GetAsString(i)
			dbID, _ := sr.Fields.GetColumn("db_id").GetAsString(i)
			recordID, _ := sr.Fields.GetColumn("record_id").GetAsInt64(i)
			docType, _ := sr.Fields.GetColumn("doc_type").GetAsString(i)

			results = append(results, SearchResult{
				ChunkID:  chunkID,
				Text:     text,
				DBID:     dbID,
				RecordID: recordID,
				DocType:  docType,
				Score:    sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}

func filterExpr(f Filter) string {
	var parts []string
	if f.DBID != "" {
		parts = append(parts, fmt.Sprintf(`db_id == "%s"`, escape(f.DBID)))
	}
	if f.DocType != "" {
		parts = append(parts, fmt.Sprintf(`doc_type == "%s"`, escape(f.DocType)))
	}
	return strings.Join(parts, " && ")
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
