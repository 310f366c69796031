package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxsen/careerrec/internal/service"
)

func newRecommendCmd(configPath *string) *cobra.Command {
	var (
		role string
		topK int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "recommend resources for a role as csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			recommend, err := a.recommendService()
			if err != nil {
				return err
			}
			rec, err := recommend.Recommend(ctx, role, topK)
			if err != nil {
				return err
			}
			if rec.Warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), rec.Warning)
			}
			if rec.Empty() {
				fmt.Fprintf(cmd.ErrOrStderr(), "No results found for the role '%s'.\n", rec.Role)
			}
			export := service.NewExportService()
			data, err := export.CSV(recommend.Categorize(ctx, rec), recommend.Categories(), 0)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "-" {
				out = export.FileName(rec.Role)
			}
			if err := a.saveBytes(ctx, out, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "job role to recommend for")
	cmd.Flags().IntVar(&topK, "top-k", 0, "candidates to retrieve, 0 uses recommend.top_k")
	cmd.Flags().StringVar(&out, "out", "", "file store key for the csv; '-' uses <Role>_resources.csv")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
