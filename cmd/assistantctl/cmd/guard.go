package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/bootstrap"
	"github.com/rowens2025/powervisualize/internal/domain/guard"
	"github.com/rowens2025/powervisualize/internal/infrastructure/cache"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
)

// guardInspector reads abuse guard state without counting a request
type guardInspector interface {
	Status(ctx context.Context, key string) (guard.State, error)
	Policy() guard.Policy
}

type guardReport struct {
	Key         string     `json:"key"`
	Requests    int        `json:"requests"`
	Limit       int        `json:"limit"`
	Strikes     int        `json:"strikes"`
	StrikeLimit int        `json:"strike_limit"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

func newGuardCommand(root *rootOptions) *cobra.Command {
	guardCmd := &cobra.Command{
		Use:   "guard",
		Short: "Inspect the abuse guard",
	}

	guardCmd.AddCommand(&cobra.Command{
		Use:   "status <client>",
		Short: "Show the rate window, strikes, and lockout of a client address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync(log)

			// An in-memory store would only ever report an empty state here.
			store, err := cache.NewGuardStoreFactory(cfg.Redis, cfg.Guard,
				cache.WithLogger(log),
				cache.WithInMemoryFallback(false),
			).CreateStore()
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("Error closing guard store", zap.Error(err))
				}
			}()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			g := guard.New(store, bootstrap.GuardPolicy(cfg.Guard))
			return runGuardStatus(ctx, cmd.OutOrStdout(), g, args[0], root.jsonOut)
		},
	})
	return guardCmd
}

func runGuardStatus(ctx context.Context, w io.Writer, g guardInspector, client string, jsonOut bool) error {
	key := guard.ClientKey(client)
	st, err := g.Status(ctx, key)
	if err != nil {
		return err
	}
	policy := g.Policy()

	report := guardReport{
		Key:         key,
		Requests:    st.Count,
		Limit:       policy.Limit,
		Strikes:     st.Strikes,
		StrikeLimit: policy.StrikeLimit,
	}
	if !st.LockedUntil.IsZero() {
		until := st.LockedUntil
		report.LockedUntil = &until
	}

	if jsonOut {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "key:      %s\n", report.Key)
	fmt.Fprintf(w, "requests: %d/%d\n", report.Requests, report.Limit)
	fmt.Fprintf(w, "strikes:  %d/%d\n", report.Strikes, report.StrikeLimit)
	if report.LockedUntil != nil {
		fmt.Fprintf(w, "locked until %s\n", report.LockedUntil.Format(time.RFC3339))
	}
	return nil
}
