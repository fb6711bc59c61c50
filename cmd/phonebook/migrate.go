package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/migrations"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database schema migrations",
	}
	cmd.AddCommand(newMigrateDirectionCmd("up", "Apply all pending migrations", migrations.Up))
	cmd.AddCommand(newMigrateDirectionCmd("down", "Revert all applied migrations", migrations.Down))
	return cmd
}

type migrateFunc func(db *sql.DB, dialect store.Dialect, uri string) (migrations.Result, error)

func newMigrateDirectionCmd(use, short string, run migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)

			st, err := store.Open(cmd.Context(), cfg.DBURI)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			sqlStore, ok := st.(*store.SQLStore)
			if !ok {
				return fmt.Errorf("migrations need a postgres or sqlite store")
			}

			result, err := run(sqlStore.DB(), sqlStore.Dialect(), cfg.DBURI)
			if err != nil {
				return err
			}
			logger.Info().Str("direction", use).Uint("version", result.Version).Bool("dirty", result.Dirty).Msg("database migration complete")
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", result.Version, result.Dirty)
			return nil
		},
	}
}
