package scheduler

import (
	"context"
	"time"

	"github.com/mattjoyce/gitshelf/internal/scratch"
)

//go:generate mockgen -destination=mocks/mock_maintenance.go -package=mocks github.com/mattjoyce/gitshelf/internal/scheduler ScratchSweeper,JournalPruner

// ScratchSweeper is the scratch.Sweeper the scheduler drives.
type ScratchSweeper interface {
	scratch.Sweeper
}

// JournalPruner deletes journal entries older than a retention window.
type JournalPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}
