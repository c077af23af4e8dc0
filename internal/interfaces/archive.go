package interfaces

import (
	"context"

	"github.com/ternarybob/failscope/internal/models"
)

// RunArchive persists completed runs for historical analysis
type RunArchive interface {
	// SaveRun stores or replaces the dump for its session
	SaveRun(ctx context.Context, dump models.RunDump) error

	// RecentRuns returns up to limit runs, oldest first (limit <= 0 means all)
	RecentRuns(ctx context.Context, limit int) ([]models.RunDump, error)

	// Close releases the underlying storage
	Close() error
}
