package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// Open connects to the SQLite database at path. The pool is capped at one
// connection so that write transactions serialize instead of failing with
// SQLITE_BUSY.
func Open(path string, busyTimeout time.Duration) (*gorm.DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        buildDSN(path, busyTimeout),
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func buildDSN(path string, busyTimeout time.Duration) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, sep, busyTimeout.Milliseconds())
}

func translateError(err error, what string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s already exists", domain.ErrConflict, what)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrStorage, what, err)
	}
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
