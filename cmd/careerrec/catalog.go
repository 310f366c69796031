package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxsen/careerrec/internal/repo"
)

func newCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "manage the resource catalog",
	}
	cmd.AddCommand(newCatalogImportCmd(configPath), newCatalogFillCategoryCmd(configPath))
	return cmd
}

func newCatalogImportCmd(configPath *string) *cobra.Command {
	var (
		in       string
		seqStart int64
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "store a catalog table in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireDB(); err != nil {
				return err
			}
			ctx := cmd.Context()
			table, err := a.readTable(ctx, in)
			if err != nil {
				return err
			}
			resources := table.Resources()
			if err := repo.NewResourceRepo(a.db).UpsertBatch(ctx, resources, seqStart); err != nil {
				return fmt.Errorf("import catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d rows\n", len(resources), len(table.Rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "table key in the file store")
	cmd.Flags().Int64Var(&seqStart, "seq-start", 0, "catalog position of the first row")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newCatalogFillCategoryCmd(configPath *string) *cobra.Command {
	var in, out, category string
	cmd := &cobra.Command{
		Use:   "fill-category",
		Short: "set one category on every row of a table",
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
			n := table.FillCategory(category)
			if err := a.writeTable(ctx, out, table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set category %q on %d rows, wrote %s\n", category, n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input table key in the file store")
	cmd.Flags().StringVar(&out, "out", "", "output table key in the file store")
	cmd.Flags().StringVar(&category, "category", "", "category to set")
	for _, name := range []string{"in", "out", "category"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
