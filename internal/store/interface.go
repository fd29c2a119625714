package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"linkwatch/internal/model"
)

var (
	// ErrNoSnapshot signals the first run: no previous report exists yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
	// ErrRunInProgress means another run currently holds the run lock.
	ErrRunInProgress = errors.New("another run is in progress")
)

// RunInfo summarizes the most recent completed run.
type RunInfo struct {
	RunID      uuid.UUID `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Rows       int       `json:"rows"`
	Changes    int       `json:"changes"`
	Failures   int       `json:"failures"`
}

// Store persists the latest report and run bookkeeping. Only the most recent
// snapshot is retained; it is the diff baseline for the next run.
type Store interface {
	LoadReport(ctx context.Context) (*model.Report, error)
	SaveReport(ctx context.Context, report *model.Report) error
	SaveRun(ctx context.Context, info RunInfo, changes []model.Change) error
	RecentChanges(ctx context.Context, limit int) ([]model.Change, error)
	LastRun(ctx context.Context) (*RunInfo, error)
	AcquireRunLock(ctx context.Context, ttl time.Duration) error
	ReleaseRunLock(ctx context.Context) error
}
