package main

import (
	"github.com/spf13/cobra"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply pending schema migrations to the configured database. The
migrations are embedded in the binary, so this needs nothing besides
DATABASE_URL. Safe to run repeatedly; applied versions are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		initLogging(cfg)

		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.WithComponent("main").Info().Msg("migrations applied")
		return nil
	},
}
