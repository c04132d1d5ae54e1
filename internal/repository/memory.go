package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStepRecordRepository in-memory реализация для разработки и тестов
type MemoryStepRecordRepository struct {
	mu     sync.RWMutex
	nextID int64
	byRun  map[string][]*StepRecord
	order  []string // порядок появления прогонов
}

// NewMemoryStepRecordRepository создаёт in-memory хранилище
func NewMemoryStepRecordRepository() *MemoryStepRecordRepository {
	return &MemoryStepRecordRepository{
		byRun: make(map[string][]*StepRecord),
	}
}

func (r *MemoryStepRecordRepository) Append(ctx context.Context, rec *StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := *rec
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if _, ok := r.byRun[stored.RunID]; !ok {
		r.order = append(r.order, stored.RunID)
	}
	r.byRun[stored.RunID] = append(r.byRun[stored.RunID], &stored)

	rec.ID = stored.ID
	return nil
}

func (r *MemoryStepRecordRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*StepRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, ok := r.byRun[runID]
	if !ok {
		return nil, ErrRunNotFound
	}

	out := make([]*StepRecord, len(records))
	for i, rec := range records {
		cp := *rec
		out[i] = &cp
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SimTime < out[j].SimTime
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryStepRecordRepository) Runs(ctx context.Context, limit int) ([]*RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RunSummary, 0, len(r.order))
	for _, runID := range r.order {
		records := r.byRun[runID]
		if len(records) == 0 {
			continue
		}

		summary := &RunSummary{
			RunID:     runID,
			Steps:     int64(len(records)),
			FirstTime: records[0].SimTime,
			LastTime:  records[0].SimTime,
			StartedAt: records[0].CreatedAt,
		}
		for _, rec := range records {
			if rec.SimTime < summary.FirstTime {
				summary.FirstTime = rec.SimTime
			}
			if rec.SimTime > summary.LastTime {
				summary.LastTime = rec.SimTime
			}
			if rec.CreatedAt.Before(summary.StartedAt) {
				summary.StartedAt = rec.CreatedAt
			}
		}
		out = append(out, summary)

		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (r *MemoryStepRecordRepository) DeleteRun(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byRun[runID]; !ok {
		return ErrRunNotFound
	}
	delete(r.byRun, runID)

	for i, id := range r.order {
		if id == runID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
