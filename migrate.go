package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jvaguiar05/smart-park-system/pkg/database"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := database.OpenSQL(cfg.Database.ConnectionString())
				if err != nil {
					return err
				}
				defer db.Close()
				return database.RunMigrations(db, logger)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}

				db, err := database.OpenSQL(cfg.Database.ConnectionString())
				if err != nil {
					return err
				}
				defer db.Close()
				return database.RollbackMigrations(db, steps, logger)
			},
		},
	)
	return cmd
}
