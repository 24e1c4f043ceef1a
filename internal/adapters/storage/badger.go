package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"

	"github.com/eleven-am/loom/internal/domain"
)

const runKeyPrefix = "run:"

// BadgerStore archives terminal runs in an embedded badger database. It
// implements ports.Persistence; Get and List exist for host tooling that
// inspects archived runs.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadgerStore(dataDir string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger-runs")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store at %s: %w", dataDir, err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With("component", "badger_store"),
	}, nil
}

func (s *BadgerStore) PersistRun(ctx context.Context, run *domain.ExecutionRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run %s: %w", run.ID, err)
	}

	key := []byte(runKeyPrefix + run.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ID, err)
	}

	s.logger.Debug("run archived",
		"run_id", run.ID,
		"status", string(run.Status),
		"bytes", len(value),
	)

	return nil
}

func (s *BadgerStore) GetRun(ctx context.Context, runID string) (*domain.ExecutionRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var run domain.ExecutionRun
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + runID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	return &run, nil
}

func (s *BadgerStore) ListRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, runKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return ids, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}
