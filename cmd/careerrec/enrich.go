package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/catalog"
	"github.com/xxxsen/careerrec/internal/service"
)

type enrichStep func(s *service.EnrichService, ctx context.Context, rows []catalog.Row) (service.EnrichReport, error)

func newEnrichCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "fill catalog fields from link previews or a language model",
	}
	cmd.AddCommand(
		newEnrichStepCmd(configPath, "preview", "fill title and description from the link preview service", false,
			(*service.EnrichService).Preview),
		newEnrichStepCmd(configPath, "classify", "generate title, category and roles for each row", true,
			(*service.EnrichService).Classify),
	)
	return cmd
}

func newEnrichStepCmd(configPath *string, use, short string, withGenerator bool, step enrichStep) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			table, err := a.readTable(ctx, in)
			if err != nil {
				return err
			}
			enrich, err := a.enrichService(withGenerator)
			if err != nil {
				return err
			}
			report, stepErr := step(enrich, ctx, table.Rows)
			// rows done before a cancellation are still worth keeping
			if err := a.writeTable(ctx, out, table); err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("enrich finished",
				zap.String("step", use), zap.Int("ok", report.OK), zap.Int("failed", report.Failed))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ok, %d failed, wrote %s\n", use, report.OK, report.Failed, out)
			return stepErr
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input table key in the file store")
	cmd.Flags().StringVar(&out, "out", "", "output table key in the file store")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
