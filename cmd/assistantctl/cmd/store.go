package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/persistence"
)

// ErrInvariantsBroken is returned by store check when the audit found problems
var ErrInvariantsBroken = errors.New("evidence store invariants broken")

// projectAuditor is the part of the evidence store the audit reads
type projectAuditor interface {
	AuditProjects(ctx context.Context) ([]evidence.ProjectAudit, error)
}

type auditReport struct {
	Projects   int      `json:"projects"`
	Published  int      `json:"published"`
	Violations []string `json:"violations"`
}

func newStoreCommand(root *rootOptions) *cobra.Command {
	store := &cobra.Command{
		Use:   "store",
		Short: "Inspect the evidence store",
	}

	store.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Audit slugs, statuses, and published project coverage, drafts included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync(log)

			gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(root.logLevel))
			db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("Error closing database", zap.Error(err))
				}
			}()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runStoreCheck(ctx, cmd.OutOrStdout(), persistence.NewGormEvidenceRepository(db.DB), root.jsonOut)
		},
	})
	return store
}

func runStoreCheck(ctx context.Context, w io.Writer, src projectAuditor, jsonOut bool) error {
	rows, err := src.AuditProjects(ctx)
	if err != nil {
		return err
	}

	report := auditReport{Projects: len(rows), Violations: []string{}}
	for _, r := range rows {
		if r.Project.Published() {
			report.Published++
		}
	}
	for _, v := range evidence.Audit(rows) {
		report.Violations = append(report.Violations, v.String())
	}

	if jsonOut {
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%d projects (%d published)\n", report.Projects, report.Published)
		for _, v := range report.Violations {
			fmt.Fprintf(w, "  %s\n", v)
		}
		if len(report.Violations) == 0 {
			fmt.Fprintln(w, "no violations")
		}
	}

	if len(report.Violations) > 0 {
		return fmt.Errorf("%w: %d violations", ErrInvariantsBroken, len(report.Violations))
	}
	return nil
}
