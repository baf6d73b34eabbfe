package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"iapgate/internal/shared/logger"
)

//go:embed scripts/*.sql
var embeddedScripts embed.FS

const (
	scriptsDir = "scripts"
	dialect    = "sqlite3"
)

// goose keeps its dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Strategy defines the interface for different migration strategies
type Strategy interface {
	// Migrate brings the schema up to date
	Migrate(db *gorm.DB) error
	// GetName returns the strategy name
	GetName() string
}

// GooseStrategy applies versioned SQL scripts with goose.
type GooseStrategy struct {
	scripts fs.FS
	logger  logger.Interface
}

// NewGooseStrategy uses the scripts embedded in the binary.
func NewGooseStrategy(log logger.Interface) *GooseStrategy {
	return NewGooseStrategyWithFS(embeddedScripts, log)
}

// NewGooseStrategyWithFS reads scripts from the "scripts" directory of fsys.
func NewGooseStrategyWithFS(fsys fs.FS, log logger.Interface) *GooseStrategy {
	return &GooseStrategy{
		scripts: fsys,
		logger:  log.With("component", "migration.goose"),
	}
}

func (s *GooseStrategy) Migrate(db *gorm.DB) error {
	s.logger.Infow("starting goose migration")

	return s.withGoose(db, func(run gooseRunner) error {
		currentVersion, err := run.version()
		if err != nil {
			s.logger.Errorw("failed to get current version", "error", err)
			return fmt.Errorf("failed to get current version: %w", err)
		}

		s.logger.Infow("current migration status", "version", currentVersion)

		if err := goose.Up(run.db, scriptsDir); err != nil {
			s.logger.Errorw("migration failed", "error", err)
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		finalVersion, err := run.version()
		if err != nil {
			s.logger.Errorw("failed to get final version", "error", err)
			return fmt.Errorf("failed to get final version: %w", err)
		}

		s.logger.Infow("migration completed successfully",
			"from_version", currentVersion,
			"to_version", finalVersion)
		return nil
	})
}

func (s *GooseStrategy) GetName() string {
	return "goose"
}

// MigrateDown rolls back steps migrations.
func (s *GooseStrategy) MigrateDown(db *gorm.DB, steps int) error {
	s.logger.Infow("starting down migration", "steps", steps)

	return s.withGoose(db, func(run gooseRunner) error {
		for i := 0; i < steps; i++ {
			if err := goose.Down(run.db, scriptsDir); err != nil {
				s.logger.Errorw("down migration failed", "error", err)
				return fmt.Errorf("failed to run down migration: %w", err)
			}
		}
		s.logger.Infow("down migration completed successfully")
		return nil
	})
}

func (s *GooseStrategy) GetVersion(db *gorm.DB) (int64, error) {
	var version int64
	err := s.withGoose(db, func(run gooseRunner) error {
		v, err := run.version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Status prints the applied and pending migrations through goose's logger.
func (s *GooseStrategy) Status(db *gorm.DB) error {
	return s.withGoose(db, func(run gooseRunner) error {
		if err := goose.Status(run.db, scriptsDir); err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		return nil
	})
}
