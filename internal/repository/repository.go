// Package repository хранит записи шагов симуляции: по одной записи на
// каждый успешный advance, сгруппированные по идентификатору прогона.
// Хранилище пишется мимо горячего пути и никогда не читается сессией.
package repository

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var (
	ErrRunNotFound = errors.New("run not found")
)

// StepRecord запись одного шага симуляции
type StepRecord struct {
	ID           int64
	RunID        string
	SimTime      float64
	Step         int64
	Controls     []byte // JSON кадра управления
	Measurements []byte // JSON набора измерений
	CreatedAt    time.Time
}

// RunSummary краткая информация о прогоне
type RunSummary struct {
	RunID     string
	Steps     int64
	FirstTime float64
	LastTime  float64
	StartedAt time.Time
}

// StepRecordRepository интерфейс хранилища записей шагов
type StepRecordRepository interface {
	// Append добавляет запись шага
	Append(ctx context.Context, rec *StepRecord) error

	// ListByRun возвращает записи прогона в порядке времени симуляции
	ListByRun(ctx context.Context, runID string, limit int) ([]*StepRecord, error)

	// Runs возвращает сводки известных прогонов
	Runs(ctx context.Context, limit int) ([]*RunSummary, error)

	// DeleteRun удаляет все записи прогона
	DeleteRun(ctx context.Context, runID string) error
}
