package scratch

import (
	"context"
	"time"
)

// Dir is a private, uniquely named directory owned by one query.
type Dir struct {
	ID   string
	Path string
}

// CleanupReport summarizes a cleanup run.
type CleanupReport struct {
	DeletedDirs int
}

// Allocator hands out scratch directories and takes them back.
type Allocator interface {
	// Create allocates a new empty scratch directory.
	Create(ctx context.Context) (Dir, error)

	// Release removes dir and everything under it.
	Release(dir Dir) error
}

// Sweeper removes scratch directories left behind by crashed processes.
type Sweeper interface {
	// Cleanup removes scratch directories older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error)
}
