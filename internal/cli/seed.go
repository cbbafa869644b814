package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"iq-test-service/internal/infra/memory"
	"iq-test-service/internal/infra/postgres"
)

// NewSeedCmd loads a YAML catalog into postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert tests and questions from a YAML catalog into postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if file == "" {
				file = cfg.Catalog.SeedPath
			}
			if file == "" {
				return fmt.Errorf("no catalog file: pass --file or set catalog.seed_path")
			}

			catalog, err := memory.ReadCatalogFile(file)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg, log); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewCatalog(pool).Upsert(cmd.Context(), catalog.Tests, catalog.Questions); err != nil {
				return err
			}
			log.Info("catalog seeded", "file", file, "tests", len(catalog.Tests), "questions", len(catalog.Questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML (defaults to catalog.seed_path)")
	return cmd
}
