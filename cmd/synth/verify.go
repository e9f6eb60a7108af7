package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/internal/verify"
)

var (
	heldOut  bool
	minWords int
	maxWords int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check persisted artifacts: ids, bridge reproducibility, document lint",
	Long: `Re-executes every stored bridge query, lints every document and checks that
record ids strictly increase. With --held-out the oracle must also recover each
answer from its document alone.`,
	RunE: runVerify,
}

func init() {
	defaults := verify.DefaultLintConfig()
	verifyCmd.Flags().BoolVar(&heldOut, "held-out", false, "ask the oracle to answer from each document alone")
	verifyCmd.Flags().IntVar(&minWords, "min-words", defaults.MinWords, "minimum document length in words")
	verifyCmd.Flags().IntVar(&maxWords, "max-words", defaults.MaxWords, "maximum document length in words")
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	opts := []verify.Option{verify.WithLintConfig(verify.LintConfig{MinWords: minWords, MaxWords: maxWords})}
	if heldOut {
		_, o, err := e.openOracle(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, verify.WithHeldOut(o))
	}
	verifier := verify.New(e.executor(), e.logger, opts...)

	ledger, err := e.openLedger()
	if err != nil {
		e.logger.Warn("Run ledger unavailable", zap.Error(err))
	}

	failed := 0
	for _, dbID := range dbIDs {
		report, err := verifier.Verify(ctx, layout, dbID)
		if err != nil {
			return fmt.Errorf("failed to verify %s: %w", dbID, err)
		}
		fmt.Print(report.Render())

		if report.Failed() > 0 {
			failed++
		}
		if ledger == nil {
			continue
		}
		_, err = ledger.InsertVerification(ctx, models.VerificationReport{
			DBID:      dbID,
			Artifact:  layout.Prefix,
			Checked:   report.Checked(),
			Failed:    report.Failed(),
			Summary:   report.Summary(),
			CreatedAt: time.Now(),
		})
		if err != nil {
			e.logger.Warn("Failed to record verification", zap.String("db_id", dbID), zap.Error(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("verification found problems in %d of %d databases", failed, len(dbIDs))
	}
	return nil
}
