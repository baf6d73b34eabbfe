package migration

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

type gooseRunner struct {
	db *sql.DB
}

func (r gooseRunner) version() (int64, error) {
	return goose.GetDBVersion(r.db)
}

// withGoose configures goose's globals for this strategy and runs fn while
// holding them.
func (s *GooseStrategy) withGoose(db *gorm.DB, fn func(gooseRunner) error) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(s.scripts)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return fn(gooseRunner{db: sqlDB})
}
