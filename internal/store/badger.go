package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/jonathan/skill-improver/internal/types"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *zerolog.Logger
}

// BadgerStore keeps each collection as one JSON array under a fixed key,
// mirroring a browser-style key-value record store.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts zerolog to Badger's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// OpenBadger opens (creating if needed) a Badger database for the store.
// Caller must call Close when done.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) LoadGrades(_ context.Context) ([]types.SkillGrade, error) {
	var grades []types.SkillGrade
	err := s.db.View(func(txn *badger.Txn) error {
		return readCollection(txn, KeyGrades, &grades)
	})
	if err != nil || grades == nil {
		return []types.SkillGrade{}, err
	}
	return grades, nil
}

func (s *BadgerStore) AppendGrade(_ context.Context, grade types.SkillGrade) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var grades []types.SkillGrade
		if err := readCollection(txn, KeyGrades, &grades); err != nil {
			return err
		}
		grades = append(grades, grade)
		return writeCollection(txn, KeyGrades, grades)
	})
}

func (s *BadgerStore) LoadVersions(_ context.Context) ([]types.SkillVersion, error) {
	var versions []types.SkillVersion
	err := s.db.View(func(txn *badger.Txn) error {
		return readCollection(txn, KeyVersions, &versions)
	})
	if err != nil || versions == nil {
		return []types.SkillVersion{}, err
	}
	return versions, nil
}

func (s *BadgerStore) ReplaceVersions(_ context.Context, versions []types.SkillVersion) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return writeCollection(txn, KeyVersions, versions)
	})
}

func (s *BadgerStore) LoadRequests(_ context.Context) ([]types.ImprovementRequest, error) {
	var requests []types.ImprovementRequest
	err := s.db.View(func(txn *badger.Txn) error {
		return readCollection(txn, KeyRequests, &requests)
	})
	if err != nil || requests == nil {
		return []types.ImprovementRequest{}, err
	}
	return requests, nil
}

func (s *BadgerStore) ReplaceRequests(_ context.Context, requests []types.ImprovementRequest) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return writeCollection(txn, KeyRequests, requests)
	})
}

// PutRaw overwrites a collection with raw bytes. Used to seed fixtures and
// to exercise corruption handling.
func (s *BadgerStore) PutRaw(key string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func readCollection(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
		return nil
	})
}

func writeCollection(txn *badger.Txn, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
