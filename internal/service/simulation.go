// Package service реализует операции сервисной границы поверх сессии
// симуляции: каждая операция возвращает человекочитаемое сообщение и
// структурированный payload, ошибки несут код для HTTP отображения.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"coolsim/internal/plant"
	"coolsim/internal/repository"
	"coolsim/internal/session"
	"coolsim/pkg/apperror"
	"coolsim/pkg/logger"
	"coolsim/pkg/metrics"
)

// SimulationService операции управления симуляцией
type SimulationService struct {
	session *session.Session
	records repository.StepRecordRepository

	name    string
	version string

	mu    sync.Mutex
	runID string
}

// NewSimulationService создаёт сервис
func NewSimulationService(sess *session.Session, records repository.StepRecordRepository, name, version string) *SimulationService {
	return &SimulationService{
		session: sess,
		records: records,
		name:    name,
		version: version,
	}
}

// RunID возвращает идентификатор текущего прогона
func (s *SimulationService) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Initialize сбрасывает симуляцию к стартовому времени и начинает новый
// прогон
func (s *SimulationService) Initialize(ctx context.Context, startTime float64, endTime *float64) (map[string]float64, string, error) {
	state, err := s.session.Initialize(ctx, startTime, endTime)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.runID = uuid.NewString()
	runID := s.runID
	s.mu.Unlock()

	message := "Simulation initialized successfully to 0s."
	if startTime > 0 {
		message = fmt.Sprintf("Simulation initialized successfully to %vs with warmup period of %ds.",
			startTime, s.session.BaseUnit())
	}

	logger.Log.Info("Run started", "run_id", runID, "start_time", startTime)
	return state, message, nil
}

// Advance продвигает симуляцию на один шаг управления
func (s *SimulationService) Advance(ctx context.Context, controls plant.ControlFrame) (map[string]float64, string, error) {
	from := s.session.Time()

	start := time.Now()
	state, err := s.session.Advance(ctx, controls)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if m := metrics.Get(); m != nil {
		m.AdvanceDuration.WithLabelValues(status).Observe(duration.Seconds())
	}

	if err != nil {
		return nil, "", err
	}

	s.recordStep(controls, state)

	message := fmt.Sprintf("Advanced simulation successfully from %vs to %vs.", from, s.session.Time())
	return state, message, nil
}

// recordStep пишет запись шага мимо горячего пути. Сбой хранилища не
// влияет на результат advance.
func (s *SimulationService) recordStep(controls plant.ControlFrame, state map[string]float64) {
	if s.records == nil {
		return
	}

	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()
	if runID == "" {
		return
	}

	controlsJSON, err := json.Marshal(controls)
	if err != nil {
		logger.Log.Warn("Failed to encode controls for step record", "error", err)
		return
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		logger.Log.Warn("Failed to encode state for step record", "error", err)
		return
	}

	rec := &repository.StepRecord{
		RunID:        runID,
		SimTime:      state["time"],
		Step:         s.session.Step(),
		Controls:     controlsJSON,
		Measurements: stateJSON,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.records.Append(ctx, rec); err != nil {
			logger.Log.Warn("Failed to persist step record",
				"run_id", rec.RunID,
				"sim_time", rec.SimTime,
				"error", err,
			)
		}
	}()
}

// GetStep возвращает настроенный шаг управления
func (s *SimulationService) GetStep() (int64, string) {
	return s.session.Step(), "Queried the control step successfully."
}

// SetStep задаёт шаг управления
func (s *SimulationService) SetStep(step float64) (map[string]int64, string, error) {
	if err := s.session.SetStep(step); err != nil {
		return nil, "", err
	}
	return map[string]int64{"step": s.session.Step()}, "Control step set successfully.", nil
}

// CurrentState возвращает текущее состояние без побочных эффектов
func (s *SimulationService) CurrentState() (map[string]float64, string) {
	return s.session.CurrentState(), "Queried the current state successfully."
}

// Inputs возвращает декларированные входы управления с метаданными
func (s *SimulationService) Inputs() (map[string]plant.Metadata, string) {
	return plant.InputsMetadata(), "Queried the inputs successfully."
}

// Measurements возвращает декларированные выходы с метаданными
func (s *SimulationService) Measurements() (map[string]plant.Metadata, string) {
	return plant.OutputsMetadata(), "Queried the measurements successfully."
}

// RunInfo сводка сохранённого прогона
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Steps     int64     `json:"steps"`
	FirstTime float64   `json:"first_time"`
	LastTime  float64   `json:"last_time"`
	StartedAt time.Time `json:"started_at"`
}

// RunStep сохранённая запись одного шага прогона
type RunStep struct {
	SimTime      float64         `json:"time"`
	Step         int64           `json:"step"`
	Controls     json.RawMessage `json:"controls"`
	Measurements json.RawMessage `json:"measurements"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Runs возвращает сводки сохранённых прогонов
func (s *SimulationService) Runs(ctx context.Context, limit int) ([]RunInfo, string, error) {
	if s.records == nil {
		return nil, "", apperror.New(apperror.CodeUnavailable, "run history storage is not configured")
	}

	summaries, err := s.records.Runs(ctx, limit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query runs: %w", err)
	}

	out := make([]RunInfo, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, RunInfo{
			RunID:     sum.RunID,
			Steps:     sum.Steps,
			FirstTime: sum.FirstTime,
			LastTime:  sum.LastTime,
			StartedAt: sum.StartedAt,
		})
	}
	return out, "Queried the stored runs successfully.", nil
}

// RunSteps возвращает записи шагов прогона в порядке времени симуляции
func (s *SimulationService) RunSteps(ctx context.Context, runID string, limit int) ([]RunStep, string, error) {
	if s.records == nil {
		return nil, "", apperror.New(apperror.CodeUnavailable, "run history storage is not configured")
	}

	records, err := s.records.ListByRun(ctx, runID, limit)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, "", apperror.Newf(apperror.CodeNotFound,
			"run %s is not found in the store", runID).WithField("run_id")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to query run records: %w", err)
	}

	out := make([]RunStep, 0, len(records))
	for _, rec := range records {
		out = append(out, RunStep{
			SimTime:      rec.SimTime,
			Step:         rec.Step,
			Controls:     json.RawMessage(rec.Controls),
			Measurements: json.RawMessage(rec.Measurements),
			CreatedAt:    rec.CreatedAt,
		})
	}
	return out, fmt.Sprintf("Queried the records of run %s successfully.", runID), nil
}

// DeleteRun удаляет сохранённые записи прогона
func (s *SimulationService) DeleteRun(ctx context.Context, runID string) (string, error) {
	if s.records == nil {
		return "", apperror.New(apperror.CodeUnavailable, "run history storage is not configured")
	}

	err := s.records.DeleteRun(ctx, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		return "", apperror.Newf(apperror.CodeNotFound,
			"run %s is not found in the store", runID).WithField("run_id")
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete run: %w", err)
	}

	logger.Log.Info("Run records deleted", "run_id", runID)
	return fmt.Sprintf("Deleted the records of run %s successfully.", runID), nil
}

// Results возвращает срезы сохранённых траекторий
func (s *SimulationService) Results(pointNames []string, startTime, finalTime float64) (map[string][]float64, string, error) {
	payload, err := s.session.Results(pointNames, startTime, finalTime)
	if err != nil {
		return nil, "", err
	}
	return payload, fmt.Sprintf("Queried results data successfully for point names %v.", pointNames), nil
}

// Name возвращает имя тест-кейса
func (s *SimulationService) Name() (map[string]string, string) {
	return map[string]string{"name": s.name}, "Queried the name of the test case successfully."
}

// Version возвращает версию сервиса
func (s *SimulationService) Version() (map[string]string, string) {
	return map[string]string{"version": s.version}, "Queried the version number successfully."
}
