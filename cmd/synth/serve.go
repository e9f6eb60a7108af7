package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/api"
	"github.com/CedricPei/MAS-RAG/internal/api/handlers"
	"github.com/CedricPei/MAS-RAG/internal/middleware/validation"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
	"github.com/CedricPei/MAS-RAG/internal/progress"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve datasets, run history and live progress over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	mode, err := e.mode()
	if err != nil {
		return err
	}
	stages, err := e.stages()
	if err != nil {
		return err
	}

	ledger, err := e.openLedger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	_, o, err := e.openOracle(ctx)
	if err != nil {
		return err
	}

	hub := progress.NewHub(0)
	defer hub.Close()

	orc := pipeline.New(e.introspector(), o, e.executor(), e.cfg.Pipeline.OutputDir, e.logger,
		pipeline.WithObserver(hub),
		pipeline.WithLedger(ledger),
	)

	runs := handlers.NewRunHandler(ctx, orc, ledger, handlers.RunDefaults{
		Mode:   mode,
		DBIDs:  e.cfg.Pipeline.DBIDs,
		Count:  e.cfg.Pipeline.Count,
		Stages: stages,
	}, e.logger)

	srv := api.NewServer(api.Deps{
		Server:     e.cfg.Server,
		Validation: validation.Config{Logger: e.logger},
		Datasets:   handlers.NewDatasetHandler(e.catalog, e.cfg.Pipeline.OutputDir, mode, e.logger),
		Runs:       runs,
		Progress:   handlers.NewProgressHandler(hub, e.logger),
		Logger:     e.logger,
		AccessLog:  e.cfg.Server.Development,
	})

	addr := fmt.Sprintf("%s:%d", e.cfg.Server.Host, e.cfg.Server.Port)
	e.logger.Info("Server starting", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		cancel()
		runs.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-cmd.Context().Done():
	}

	e.logger.Info("Server shutting down gracefully...")
	// an in-flight run stops at its next record boundary
	cancel()
	if err := srv.Shutdown(runs); err != nil {
		e.logger.Warn("Shutdown error", zap.Error(err))
	}
	e.logger.Info("Server stopped")
	return nil
}
