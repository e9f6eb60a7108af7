package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/ingestion"
	"github.com/CedricPei/MAS-RAG/internal/vector/zilliz"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk, embed and insert synthesized documents into the vector index",
	RunE:  runIndex,
}

var (
	searchTopK    int
	searchDocType string
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search the document index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "number of chunks to return")
	searchCmd.Flags().StringVar(&searchDocType, "doc-type", "", "only match documents of this type")
}

func openIndex(cmd *cobra.Command, e *env) (*zilliz.Client, error) {
	store, err := zilliz.NewClient(cmd.Context(), e.cfg.Milvus, e.cfg.LLM.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { store.Close() })

	if err := store.CreateCollection(cmd.Context()); err != nil {
		return nil, err
	}
	return store, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	layout, err := e.layout()
	if err != nil {
		return err
	}
	dbIDs, err := e.dbIDs()
	if err != nil {
		return err
	}

	provider, _, err := e.openOracle(ctx)
	if err != nil {
		return err
	}
	store, err := openIndex(cmd, e)
	if err != nil {
		return err
	}

	var opts []ingestion.Option
	if cache := e.openCache(ctx); cache != nil {
		opts = append(opts, ingestion.WithEmbeddingCache(cache))
	}
	indexer := ingestion.NewIndexer(store, provider, e.cfg.Milvus, e.logger, opts...)

	for _, dbID := range dbIDs {
		docs, err := dataset.Load[dataset.DocumentRecord](layout.Documents(dbID))
		if err != nil {
			return err
		}
		stats, err := indexer.IndexDocuments(ctx, docs)
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", dbID, err)
		}
		e.logger.Info("Indexed documents", zap.String("db_id", dbID), zap.Int("documents", stats.Documents))
		fmt.Printf("%s: %d documents, %d chunks (%d embeddings cached), %d skipped\n",
			dbID, stats.Documents, stats.Chunks, stats.Cached, stats.Skipped)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	provider, _, err := e.openOracle(ctx)
	if err != nil {
		return err
	}
	store, err := openIndex(cmd, e)
	if err != nil {
		return err
	}

	embeddings, err := provider.Embed(ctx, []string{strings.Join(args, " ")})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("expected one query embedding, got %d", len(embeddings))
	}

	filter := zilliz.Filter{DocType: searchDocType}
	if ids := e.cfg.Pipeline.DBIDs; cmd.Flags().Changed("db") && len(ids) == 1 {
		filter.DBID = ids[0]
	}

	results, err := store.Search(ctx, embeddings[0], searchTopK, filter)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%d. [%s #%d, %s] score=%.4f\n   %s\n", i+1, r.DBID, r.RecordID, r.DocType, r.Score, preview(r.Text, 240))
	}
	return nil
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
