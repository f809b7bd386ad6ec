package main

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/anchorsense/internal/output"
	"github.com/crimson-sun/anchorsense/internal/output/stdout"
	"github.com/crimson-sun/anchorsense/internal/output/webhook"
	"github.com/crimson-sun/anchorsense/internal/pipeline"
)

func newClassifyCmd() *cobra.Command {
	var (
		pretty     bool
		webhookURL string
	)
	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify one review per line and print NDJSON results",
		Long: `Reads reviews one per line from file, or stdin when file is omitted or "-".
Blank lines are skipped. Each result is printed as one JSON object per line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer a.close()

			outs := []output.Output{stdout.NewWriter(cmd.OutOrStdout(), pretty)}
			if url := cmp.Or(webhookURL, cfg.WebhookURL); url != "" {
				outs = append(outs, webhook.New(url,
					webhook.WithToken(cfg.WebhookToken),
					webhook.WithBatchSize(cfg.BatchSize),
				))
			}

			p := pipeline.New(a.engine, output.Tee(outs...), a.anchors, pipeline.WithBatchSize(cfg.BatchSize))
			defer func() {
				if err := p.Close(); err != nil {
					slog.Error("failed to close output", "error", err)
				}
			}()

			st, err := p.Run(ctx, in)
			if errors.Is(err, context.Canceled) {
				slog.Info("interrupted", "classified", st.Classified)
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	cmd.Flags().StringVar(&webhookURL, "webhook", "", "also POST results in batches to this URL (overrides WEBHOOK_URL)")
	return cmd
}
