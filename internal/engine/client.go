package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"coolsim/internal/plant"
	"coolsim/pkg/apperror"
	"coolsim/pkg/config"
	"coolsim/pkg/logger"
	"coolsim/pkg/metrics"
	"coolsim/pkg/telemetry"
)

// SolverClient HTTP клиент к сайдкару физического движка
type SolverClient struct {
	baseURL string
	options SolverOptions
	client  *http.Client
}

// NewSolverClient создаёт клиент движка из конфигурации
func NewSolverClient(cfg *config.EngineConfig) *SolverClient {
	// Фильтр рядов: движок возвращает только декларированные выходы и
	// входы, внутренние переменные модели не сериализуются
	filter := make([]string, 0, plant.OutputCount()+plant.ControlCount())
	filter = append(filter, plant.OutputNames()...)
	filter = append(filter, plant.ControlNames()...)

	return &SolverClient{
		baseURL: cfg.Address(),
		options: SolverOptions{
			Solver:       cfg.Solver,
			RelTolerance: cfg.RelTolerance,
			AbsTolerance: cfg.AbsTolerance,
			Filter:       filter,
		},
		client: &http.Client{
			// Нулевой таймаут намеренно: шаг движка может длиться минуты,
			// политика таймаута и ретраев принадлежит вызывающей стороне
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Options возвращает опции решателя, зафиксированные при создании
func (c *SolverClient) Options() SolverOptions {
	return c.options
}

type simulateRequest struct {
	StartTime float64       `json:"start_time"`
	StopTime  float64       `json:"stop_time"`
	Options   SolverOptions `json:"options"`
	Input     *Input        `json:"input,omitempty"`
}

type simulateResponse struct {
	Series Result `json:"series"`
	Error  string `json:"error,omitempty"`
}

// Reset возвращает движок в нулевое состояние
func (c *SolverClient) Reset(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "engine.Reset")
	defer span.End()

	timer := time.Now()
	err := c.post(ctx, "/reset", nil, nil)
	c.observe("reset", timer, err)

	if err != nil {
		telemetry.SetError(ctx, err)
		return apperror.Wrap(err, apperror.CodeEngineReset, "failed to reset physics engine")
	}
	return nil
}

// Simulate прогоняет движок на интервале [start, end]
func (c *SolverClient) Simulate(ctx context.Context, start, end float64, input *Input) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.Simulate",
		telemetry.WithAttributes(telemetry.WindowAttributes(start, end)...))
	defer span.End()

	req := simulateRequest{
		StartTime: start,
		StopTime:  end,
		Options:   c.options,
		Input:     input,
	}

	var resp simulateResponse
	timer := time.Now()
	err := c.post(ctx, "/simulate", &req, &resp)
	c.observe("simulate", timer, err)

	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrapf(err, apperror.CodeEngineStep,
			"physics engine failed on [%v, %v]", start, end)
	}

	if resp.Error != "" {
		// Диагностика движка передаётся вызывающей стороне как есть
		engineErr := apperror.Newf(apperror.CodeEngineStep,
			"physics engine failed on [%v, %v]: %s", start, end, resp.Error)
		telemetry.SetError(ctx, engineErr)
		return nil, engineErr
	}

	return resp.Series, nil
}

func (c *SolverClient) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read engine response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode engine response: %w", err)
		}
	}

	return nil
}

func (c *SolverClient) observe(op string, start time.Time, err error) {
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if m := metrics.Get(); m != nil {
		m.EngineCallsTotal.WithLabelValues(op, status).Inc()
		m.EngineCallDuration.WithLabelValues(op).Observe(duration.Seconds())
	}

	logger.Log.Debug("Engine call finished",
		"op", op,
		"status", status,
		"duration", duration,
	)
}
