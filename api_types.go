package loom

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/eleven-am/loom/internal/adapters/storage"
	"github.com/eleven-am/loom/internal/ports"
)

// TemplateRegistrationError reports an invalid template registration.
type TemplateRegistrationError = ports.TemplateRegistrationError

// RunStore is a persistence sink that can also read archived runs back.
// Both shipped stores implement it.
type RunStore interface {
	Persistence
	GetRun(ctx context.Context, runID string) (*ExecutionRun, error)
	ListRuns(ctx context.Context) ([]string, error)
}

// BadgerRunStore archives terminal runs in an embedded badger database.
type BadgerRunStore = storage.BadgerStore

// SQLiteRunStore archives terminal runs in a SQLite database.
type SQLiteRunStore = storage.SQLiteStore

// NewBadgerRunStore opens an embedded badger database at dataDir and
// returns a RunStore archiving terminal runs there. Close the returned
// store when done.
func NewBadgerRunStore(dataDir string, logger *slog.Logger) (*BadgerRunStore, error) {
	return storage.NewBadgerStore(dataDir, logger)
}

// NewSQLiteRunStore initializes the runs schema in db and returns a
// RunStore archiving terminal runs there. db must use a SQLite driver
// such as modernc.org/sqlite.
func NewSQLiteRunStore(db *sql.DB, logger *slog.Logger) (*SQLiteRunStore, error) {
	return storage.NewSQLiteStore(db, logger)
}
