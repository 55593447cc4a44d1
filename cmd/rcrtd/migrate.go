package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/rcrt-io/rcrt/internal/config"
	"github.com/rcrt-io/rcrt/internal/storage/migrations"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := migrations.Up(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		version, err := migrations.Status(db)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		fmt.Printf("database at migration version %d\n", version)
		return nil
	},
}
