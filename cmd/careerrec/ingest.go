package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/job"
	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/repo"
	"github.com/xxxsen/careerrec/internal/service"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var (
		in    string
		opts  service.IngestOptions
		count int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "embed catalog titles and upsert them into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			resources, err := a.loadResources(ctx, in)
			if err != nil {
				return err
			}
			ingest, err := a.ingestService()
			if err != nil {
				return err
			}
			opts.Limit = count
			report, err := ingest.Ingest(ctx, resources, opts)
			logger := logutil.GetLogger(ctx).With(
				zap.Int("batches", report.Batches),
				zap.Int("records", report.Records),
				zap.Int("next_start", report.NextStart),
			)
			if err != nil {
				logger.Error("ingest stopped", zap.Error(err))
				return err
			}
			logger.Info("ingest finished")
			fmt.Fprintf(cmd.OutOrStdout(), "upserted %d records in %d batches, next start %d\n",
				report.Records, report.Batches, report.NextStart)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "catalog table key in the file store; empty reads the database catalog")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "catalog offset to resume from")
	cmd.Flags().IntVar(&count, "count", 0, "max resources to ingest, 0 for all")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 0, "records per upsert, 0 uses ingest.batch_size")
	return cmd
}

func (a *app) loadResources(ctx context.Context, key string) ([]model.Resource, error) {
	if key != "" {
		table, err := a.readTable(ctx, key)
		if err != nil {
			return nil, err
		}
		return table.Resources(), nil
	}
	if err := a.requireDB(); err != nil {
		return nil, fmt.Errorf("--in or %w", err)
	}
	return job.LoadAllResources(ctx, repo.NewResourceRepo(a.db))
}
