package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("reconciliation run not found")

const maxPageSize = 100

// ReconciliationRun is the stored summary of one run. Only counts and
// diagnostics are kept; the tables themselves are never persisted.
type ReconciliationRun struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	MasterFile      string
	WeeklyFile      string
	SchemaMode      string    `gorm:"not null"`
	DuplicatePolicy string    `gorm:"not null"`
	RunDate         time.Time `gorm:"type:date;not null"`
	MasterRows      int
	WeeklyRows      int
	MergedRows      int
	Matched         int
	DatesUpdated    int
	UnmatchedWeekly int
	DuplicatePlates int
	PayloadCount    int
	UnknownCount    int
	SkippedLinks    int
	DateWarnings    int
	TierCounts      datatypes.JSON `gorm:"type:jsonb"`
	UnmatchedPlates datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time
}

func (ReconciliationRun) TableName() string {
	return "reconciliation_runs"
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *ReconciliationRun) error
	GetRun(ctx context.Context, id string) (*ReconciliationRun, error)
	FindRuns(ctx context.Context, limit, offset int) ([]ReconciliationRun, error)
}

type GormRunRepository struct {
	db *gorm.DB
}

func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

func (r *GormRunRepository) CreateRun(ctx context.Context, run *ReconciliationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *GormRunRepository) GetRun(ctx context.Context, id string) (*ReconciliationRun, error) {
	var run ReconciliationRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *GormRunRepository) FindRuns(ctx context.Context, limit, offset int) ([]ReconciliationRun, error) {
	limit, offset = page(limit, offset)
	var runs []ReconciliationRun
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}

// MemoryRunRepository keeps run history in process memory. It is used when
// no database is configured and in tests.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs []ReconciliationRun
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{}
}

func (r *MemoryRunRepository) CreateRun(_ context.Context, run *ReconciliationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *MemoryRunRepository) GetRun(_ context.Context, id string) (*ReconciliationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.runs {
		if r.runs[i].ID == id {
			run := r.runs[i]
			return &run, nil
		}
	}
	return nil, ErrRunNotFound
}

func (r *MemoryRunRepository) FindRuns(_ context.Context, limit, offset int) ([]ReconciliationRun, error) {
	limit, offset = page(limit, offset)

	r.mu.RLock()
	runs := append([]ReconciliationRun(nil), r.runs...)
	r.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if offset >= len(runs) {
		return []ReconciliationRun{}, nil
	}
	runs = runs[offset:]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
