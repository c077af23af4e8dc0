// Package archive keeps completed run dumps in a Badger database so history
// analysis does not depend on run-dump files surviving on disk.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
)

// RunEntry is the stored form of one run, keyed by session id
type RunEntry struct {
	SessionID string
	EndedAt   time.Time
	Failed    int
	Dump      models.RunDump
}

// Archive implements interfaces.RunArchive on badgerhold
type Archive struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// Compile-time assertion
var _ interfaces.RunArchive = (*Archive)(nil)

// Open opens (or creates) the archive at path. reset deletes any existing
// archive first.
func Open(logger arbor.ILogger, path string, reset bool) (*Archive, error) {
	if reset {
		if _, err := os.Stat(path); err == nil {
			logger.Debug().Str("path", path).Msg("Deleting existing run archive (reset_on_startup=true)")
			if err := os.RemoveAll(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to delete run archive")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // badger's own logger is noisy; arbor covers it

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive at %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Msg("Run archive opened")
	return &Archive{store: store, logger: logger, path: path}, nil
}

// SaveRun stores dump, replacing an earlier save for the same session
func (a *Archive) SaveRun(ctx context.Context, dump models.RunDump) error {
	if dump.Summary.SessionID == "" {
		return errors.New("run dump has no session id")
	}
	entry := &RunEntry{
		SessionID: dump.Summary.SessionID,
		EndedAt:   dump.Summary.EndedAt,
		Failed:    len(dump.Failures),
		Dump:      dump,
	}
	if err := a.store.Upsert(entry.SessionID, entry); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", entry.SessionID, err)
	}
	a.logger.Debug().
		Str("session", entry.SessionID).
		Int("failures", entry.Failed).
		Msg("Run archived")
	return nil
}

// RecentRuns returns up to limit runs ordered oldest first (limit <= 0 means all)
func (a *Archive) RecentRuns(ctx context.Context, limit int) ([]models.RunDump, error) {
	query := badgerhold.Where("SessionID").Ne("").SortBy("EndedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []RunEntry
	if err := a.store.Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to read run archive: %w", err)
	}

	runs := make([]models.RunDump, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		runs = append(runs, entries[i].Dump)
	}
	return runs, nil
}

// Prune deletes all but the keep most recent runs and reclaims value-log
// space. keep <= 0 keeps everything.
func (a *Archive) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	var stale []RunEntry
	query := badgerhold.Where("SessionID").Ne("").SortBy("EndedAt").Reverse().Skip(keep)
	if err := a.store.Find(&stale, query); err != nil {
		return 0, fmt.Errorf("failed to list runs to prune: %w", err)
	}

	deleted := 0
	for _, entry := range stale {
		if err := a.store.Delete(entry.SessionID, RunEntry{}); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("failed to prune run %s: %w", entry.SessionID, err)
		}
		deleted++
	}

	if deleted > 0 {
		for {
			if err := a.store.Badger().RunValueLogGC(0.5); err != nil {
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
					a.logger.Warn().Err(err).Msg("Run archive value-log GC failed")
				}
				break
			}
		}
	}

	a.logger.Debug().Int("deleted", deleted).Int("keep", keep).Msg("Run archive pruned")
	return deleted, nil
}

// Count returns the number of archived runs
func (a *Archive) Count() (int, error) {
	n, err := a.store.Count(&RunEntry{}, badgerhold.Where("SessionID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count archived runs: %w", err)
	}
	return int(n), nil
}

// Close closes the database
func (a *Archive) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
