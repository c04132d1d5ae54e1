package repository

import (
	"context"
	"fmt"

	"coolsim/pkg/config"
	"coolsim/pkg/database"
)

// RepositoryType тип репозитория
type RepositoryType string

const (
	RepositoryTypeMemory   RepositoryType = "memory"
	RepositoryTypePostgres RepositoryType = "postgres"
)

// Repositories контейнер репозиториев
type Repositories struct {
	StepRecords StepRecordRepository
	db          *database.PostgresDB // Для закрытия при shutdown
}

// Close закрывает соединения
func (r *Repositories) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// DB возвращает подключение к БД (nil для in-memory)
func (r *Repositories) DB() *database.PostgresDB {
	return r.db
}

// NewRepositories создаёт репозитории на основе конфигурации
func NewRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	repoType := RepositoryType(cfg.Driver)

	switch repoType {
	case RepositoryTypeMemory, "":
		return &Repositories{
			StepRecords: NewMemoryStepRecordRepository(),
		}, nil

	case RepositoryTypePostgres, "postgresql":
		db, err := database.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &Repositories{
			StepRecords: NewPostgresStepRecordRepository(db),
			db:          db,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Driver)
	}
}
