package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/bootstrap"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
)

type askOptions struct {
	clientID string
	pageSlug string
	pageType string
}

func newAskCommand(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one question through the full pipeline and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.clientID, "client", "assistantctl", "Client identifier for the abuse guard")
	cmd.Flags().StringVar(&opts.pageSlug, "page-slug", "", "Slug of the page the question is asked from")
	cmd.Flags().StringVar(&opts.pageType, "page-type", "", "Type of the page the question is asked from")
	return cmd
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts *askOptions, question string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := root.logger()
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()

	req := assistant.Request{
		Question:  question,
		ClientID:  opts.clientID,
		RequestID: uuid.NewString(),
	}
	if opts.pageSlug != "" || opts.pageType != "" {
		req.Page = &intent.PageContext{PageSlug: opts.pageSlug, PageType: opts.pageType}
	}

	resp, err := app.Assistant.Ask(ctx, req)
	if err != nil {
		resp = responseOf(err)
		if resp == nil {
			return err
		}
		log.Warn("Question failed", zap.Error(err))
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

// responseOf returns the user-facing payload carried by pipeline errors
func responseOf(err error) *assistant.Response {
	var rateErr *assistant.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Response
	}
	var failErr *assistant.FailureError
	if errors.As(err, &failErr) {
		return failErr.Response
	}
	return nil
}
