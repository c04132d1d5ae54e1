package repository

import (
	"context"
	"fmt"

	"coolsim/pkg/database"
	"coolsim/pkg/telemetry"
)

// PostgresStepRecordRepository PostgreSQL реализация
type PostgresStepRecordRepository struct {
	db database.DB
}

// NewPostgresStepRecordRepository создаёт новый репозиторий
func NewPostgresStepRecordRepository(db database.DB) *PostgresStepRecordRepository {
	return &PostgresStepRecordRepository{db: db}
}

func (r *PostgresStepRecordRepository) Append(ctx context.Context, rec *StepRecord) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStepRecordRepository.Append")
	defer span.End()

	query := `
		INSERT INTO step_records (run_id, sim_time, step, controls, measurements)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.RunID,
		rec.SimTime,
		rec.Step,
		rec.Controls,
		rec.Measurements,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append step record: %w", err)
	}

	return nil
}

func (r *PostgresStepRecordRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*StepRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStepRecordRepository.ListByRun")
	defer span.End()

	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT id, run_id, sim_time, step, controls, measurements, created_at
		FROM step_records
		WHERE run_id = $1
		ORDER BY sim_time
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list step records: %w", err)
	}
	defer rows.Close()

	var out []*StepRecord
	for rows.Next() {
		rec := &StepRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.SimTime,
			&rec.Step,
			&rec.Controls,
			&rec.Measurements,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step record: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(out) == 0 {
		return nil, ErrRunNotFound
	}
	return out, nil
}

func (r *PostgresStepRecordRepository) Runs(ctx context.Context, limit int) ([]*RunSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStepRecordRepository.Runs")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT run_id, COUNT(*), MIN(sim_time), MAX(sim_time), MIN(created_at)
		FROM step_records
		GROUP BY run_id
		ORDER BY MIN(created_at) DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunSummary
	for rows.Next() {
		summary := &RunSummary{}
		err := rows.Scan(
			&summary.RunID,
			&summary.Steps,
			&summary.FirstTime,
			&summary.LastTime,
			&summary.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		out = append(out, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return out, nil
}

func (r *PostgresStepRecordRepository) DeleteRun(ctx context.Context, runID string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStepRecordRepository.DeleteRun")
	defer span.End()

	query := `DELETE FROM step_records WHERE run_id = $1`

	result, err := r.db.Exec(ctx, query, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	return nil
}
