package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payrollaudit/catalog"
	"payrollaudit/db"
)

func newDBCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema and entity catalog",
	}
	cmd.AddCommand(newDBInitCmd(c), newDBSeedCmd(c))
	return cmd
}

func newDBInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				c.logger.Info("migration applied", zap.String("name", name))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
}

func newDBSeedCmd(c *cli) *cobra.Command {
	var entesPath, municipiosPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the entity catalog from spreadsheets, or the built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := catalog.NewRepository(pool)
			out := cmd.OutOrStdout()

			if entesPath == "" && municipiosPath == "" {
				n, err := repo.SeedDefaults(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "entes: %d inserted (defaults)\n", n)
				return nil
			}

			for _, src := range []struct {
				path  string
				scope catalog.Scope
				label string
			}{
				{entesPath, catalog.ScopeState, "entes"},
				{municipiosPath, catalog.ScopeMunicipal, "municipios"},
			} {
				if src.path == "" {
					continue
				}
				n, err := seedFile(ctx, repo, src.path, src.scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d inserted\n", src.label, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entesPath, "entes", "", "xlsx with state entities")
	cmd.Flags().StringVar(&municipiosPath, "municipios", "", "xlsx with municipalities")
	return cmd
}

func seedFile(ctx context.Context, repo *catalog.Repository, path string, scope catalog.Scope) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := catalog.LoadSpreadsheet(f, scope)
	if err != nil {
		return 0, err
	}
	return repo.Insert(ctx, scope, entries)
}
