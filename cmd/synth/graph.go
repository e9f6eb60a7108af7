package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/kg/builder"
	"github.com/CedricPei/MAS-RAG/internal/kg/neo4j"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export record lineage (database, question, bridge entity, document) to Neo4j",
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
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

	client, err := neo4j.NewClient(ctx, e.cfg.Neo4j)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if err := client.EnsureConstraints(ctx); err != nil {
		return err
	}

	for _, dbID := range dbIDs {
		questions, err := dataset.Load[dataset.QuestionRecord](layout.Questions(dbID))
		if err != nil {
			return err
		}
		bridged, err := dataset.Load[dataset.BridgedRecord](layout.Bridged(dbID))
		if err != nil {
			return err
		}
		docs, err := dataset.Load[dataset.DocumentRecord](layout.Documents(dbID))
		if err != nil {
			return err
		}

		lineage, err := builder.Build(dbID, questions, bridged, docs)
		if err != nil {
			return fmt.Errorf("failed to build lineage for %s: %w", dbID, err)
		}
		if err := client.WriteLineage(ctx, lineage); err != nil {
			return err
		}

		counts, err := client.Counts(ctx, dbID)
		if err != nil {
			return err
		}
		labels := make([]string, 0, len(counts))
		for label := range counts {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		fmt.Printf("%s:", dbID)
		for _, label := range labels {
			fmt.Printf(" %s=%d", label, counts[label])
		}
		fmt.Println()
	}
	return nil
}
