package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"iapgate/internal/infrastructure/database"
	"iapgate/internal/infrastructure/migration"
	"iapgate/internal/interfaces/cli/bootstrap"
	"iapgate/internal/shared/logger"
)

var steps int

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Sandbox ledger migration tools",
		Long:  `Manage the sandbox ledger schema: apply embedded migrations, roll them back and check status.`,
	}

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending migrations to bring the ledger schema up to date.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the ledger.`,
		RunE:  runStatus,
	}
}

func initEnv(cmd *cobra.Command) (*gorm.DB, string, logger.Interface, error) {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return nil, "", nil, err
	}

	if err := database.Init(&cfg.Database); err != nil {
		return nil, "", nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return database.Get(), cfg.Database.Path, log, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	db, path, log, err := initEnv(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("running up migrations", "database", path)

	if err := migration.NewGooseStrategy(log).Migrate(db); err != nil {
		log.Errorw("migration failed", "error", err)
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	db, path, log, err := initEnv(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("running down migrations", "database", path, "steps", steps)

	if err := migration.NewGooseStrategy(log).MigrateDown(db, steps); err != nil {
		log.Errorw("down migration failed", "error", err)
		return fmt.Errorf("down migration failed: %w", err)
	}

	log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, path, log, err := initEnv(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	strategy := migration.NewGooseStrategy(log)

	version, err := strategy.GetVersion(db)
	if err != nil {
		log.Errorw("failed to get migration version", "error", err)
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nMigration Status:\n")
	fmt.Fprintf(out, "  Database:        %s\n", path)
	fmt.Fprintf(out, "  Current Version: %d\n", version)

	if err := strategy.Status(db); err != nil {
		log.Errorw("failed to get detailed status", "error", err)
		return fmt.Errorf("failed to get detailed status: %w", err)
	}

	return nil
}
