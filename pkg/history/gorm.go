package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedkit/sched/pkg/core"
)

// MaxErrorMessageLength is the maximum length for stored error messages.
const MaxErrorMessageLength = 4096

// Run is one recorded schedule tick.
type Run struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Schedule   string    `gorm:"index;size:255;not null"`
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	DurationMS int64
	Error      string     `gorm:"type:text"` // empty on success
	NextRun    *time.Time // nil when the schedule self-stopped
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
}

// GormStore persists run history using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed history store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the run history table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Run{})
}

// Record stores the outcome of one run.
func (s *GormStore) Record(ctx context.Context, report core.Report) error {
	run := &Run{
		ID:         uuid.New().String(),
		Schedule:   report.Schedule,
		StartedAt:  report.Started,
		FinishedAt: report.Finished,
		DurationMS: report.Finished.Sub(report.Started).Milliseconds(),
	}
	if report.Err != nil {
		run.Error = truncate(report.Err.Error(), MaxErrorMessageLength)
	}
	if !report.NextRun.IsZero() {
		next := report.NextRun
		run.NextRun = &next
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// Recent returns the most recent runs for a schedule, newest first.
func (s *GormStore) Recent(ctx context.Context, schedule string, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Where("schedule = ?", schedule).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// Prune deletes runs that started before the cutoff and returns the
// number of rows removed.
func (s *GormStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("started_at < ?", before).Delete(&Run{})
	return res.RowsAffected, res.Error
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
