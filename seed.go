package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/crypto"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/seed"
)

func seedCommand() *cobra.Command {
	var fixturesFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load lookup types and demo tenants from a fixtures file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := seed.LoadFile(fixturesFile)
			if err != nil {
				return err
			}

			box, err := crypto.NewSecretBox(cfg.Ingest.SecretsKey)
			if err != nil {
				return fmt.Errorf("INGEST_SECRETS_KEY is required to seed api keys: %w", err)
			}

			ctx := cmd.Context()
			db, err := database.Connect(ctx, database.ConfigFrom(&cfg.Database), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cleanup, err := database.NewScopeProvider(db).WithScope(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := seed.NewSeeder(box, logger).Apply(ctx, fx)
			if err != nil {
				return err
			}

			keyIDs := make([]string, 0, len(result.GeneratedSecrets))
			for keyID := range result.GeneratedSecrets {
				keyIDs = append(keyIDs, keyID)
			}
			sort.Strings(keyIDs)
			for _, keyID := range keyIDs {
				// Printed once; only the sealed form is stored.
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", keyID, result.GeneratedSecrets[keyID])
			}
			logger.Info("Seed complete", zap.String("file", fixturesFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&fixturesFile, "file", "f", "config/fixtures.example.yaml", "fixtures file to load")
	return cmd
}
