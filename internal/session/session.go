// Package session реализует сессию симуляции: владение текущим временем,
// шагом управления и накопленной историей измерений, а также оркестрацию
// initialize/advance поверх физического движка.
package session

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"coolsim/internal/disturbance"
	"coolsim/internal/engine"
	"coolsim/internal/plant"
	"coolsim/internal/surrogate"
	"coolsim/internal/trajectory"
	"coolsim/pkg/apperror"
	"coolsim/pkg/logger"
	"coolsim/pkg/metrics"
	"coolsim/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

// State состояние сессии
type State int

const (
	// StateUninitialized до первого успешного initialize
	StateUninitialized State = iota
	// StateReady сессия готова принимать advance
	StateReady
)

// Config параметры сессии
type Config struct {
	BaseUnit int64 // базовая единица времени, с
	Horizon  int64 // максимальное время симуляции, с
	Step     int64 // шаг управления по умолчанию, с
}

// Session сессия симуляции. Движок монопольный и нереентерабельный:
// все взаимодействия с ним сериализованы мьютексом, одновременно в
// полёте не более одного initialize или advance.
type Session struct {
	mu sync.RWMutex

	cfg     Config
	engine  engine.Engine
	builder *trajectory.Builder

	disturbances *disturbance.Table
	warmup       *WarmupTable
	baseline     *Baseline

	state   State
	simTime float64
	endTime float64
	step    int64

	// Сумма мощностей чиллеров с предыдущего шага, участвует в
	// энергобалансе следующего
	lastChillerPower float64

	currentOutputs map[string]float64
	currentInputs  map[string]float64

	historyTimes   []float64
	historyOutputs map[string][]float64
	historyInputs  map[string][]float64
}

// New создаёт сессию из загруженных ресурсов
func New(cfg Config, eng engine.Engine, table *disturbance.Table, estimator *surrogate.HeadEstimator, warmup *WarmupTable, baseline *Baseline) (*Session, error) {
	if cfg.BaseUnit <= 0 {
		return nil, fmt.Errorf("base unit must be positive, got %d", cfg.BaseUnit)
	}
	if cfg.Step <= 0 || cfg.Step%cfg.BaseUnit != 0 {
		return nil, fmt.Errorf("step must be a positive multiple of %d, got %d", cfg.BaseUnit, cfg.Step)
	}

	s := &Session{
		cfg:          cfg,
		engine:       eng,
		builder:      trajectory.NewBuilder(table, estimator),
		disturbances: table,
		warmup:       warmup,
		baseline:     baseline,
		state:        StateUninitialized,
		step:         cfg.Step,
		endTime:      float64(cfg.Horizon),
	}
	s.resetData()

	if m := metrics.Get(); m != nil {
		m.StepSize.Set(float64(s.step))
	}

	return s, nil
}

// LoadResources загружает все ресурсы сессии из каталога
func LoadResources(dir string, baseUnit int64) (*disturbance.Table, *surrogate.HeadEstimator, *WarmupTable, *Baseline, error) {
	table, err := disturbance.Load(filepath.Join(dir, DisturbanceFile), baseUnit)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	estimator, err := surrogate.Load(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	warmup, err := LoadWarmupActions(filepath.Join(dir, WarmupFile))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	baseline, err := LoadBaseline(filepath.Join(dir, BaselineFile))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return table, estimator, warmup, baseline, nil
}

// resetData сбрасывает накопленные данные. Вызывать под мьютексом.
func (s *Session) resetData() {
	s.lastChillerPower = 0

	s.currentOutputs = make(map[string]float64, plant.OutputCount())
	s.currentInputs = make(map[string]float64, plant.ControlCount())

	s.historyTimes = nil
	s.historyOutputs = make(map[string][]float64, plant.OutputCount())
	s.historyInputs = make(map[string][]float64, plant.ControlCount())
	for _, name := range plant.OutputNames() {
		s.historyOutputs[name] = nil
	}
	for _, name := range plant.ControlNames() {
		s.historyInputs[name] = nil
	}
}

// BaseUnit возвращает базовую единицу времени в секундах
func (s *Session) BaseUnit() int64 {
	return s.cfg.BaseUnit
}

// Step возвращает настроенный шаг управления в секундах
func (s *Session) Step() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// SetStep задаёт шаг управления. Шаг должен быть положительным кратным
// базовой единицы. Время и история не сбрасываются, допустимо в любом
// состоянии.
func (s *Session) SetStep(step float64) error {
	if math.IsNaN(step) || math.IsInf(step, 0) {
		return apperror.Newf(apperror.CodeInvalidStep, "invalid value %v for parameter step", step)
	}
	if step <= 0 {
		return apperror.Newf(apperror.CodeInvalidStep,
			"invalid value %v for parameter step: value must be positive", step)
	}
	unit := float64(s.cfg.BaseUnit)
	if math.Mod(step, unit) != 0 {
		return apperror.Newf(apperror.CodeInvalidStep,
			"invalid value %v for parameter step: value must be a multiple of %d (for example %d, %d, %d)",
			step, s.cfg.BaseUnit, s.cfg.BaseUnit, 2*s.cfg.BaseUnit, 3*s.cfg.BaseUnit)
	}

	s.mu.Lock()
	s.step = int64(step)
	s.mu.Unlock()

	if m := metrics.Get(); m != nil {
		m.StepSize.Set(step)
	}

	logger.Log.Info("Control step updated", "step_seconds", int64(step))
	return nil
}

// Time возвращает текущее время симуляции
func (s *Session) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simTime
}

// EndTime возвращает конечное время эпизода
func (s *Session) EndTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endTime
}

// Ready сообщает, инициализирована ли сессия
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady
}

func (s *Session) validateInitTimes(startTime float64, endTime *float64) (float64, error) {
	unit := float64(s.cfg.BaseUnit)
	horizon := float64(s.cfg.Horizon)

	if math.IsNaN(startTime) || math.IsInf(startTime, 0) {
		return 0, apperror.Newf(apperror.CodeInvalidTime,
			"invalid value %v for parameter start_time", startTime)
	}
	if startTime < 0 {
		return 0, apperror.Newf(apperror.CodeInvalidTime,
			"invalid value %v for parameter start_time: value must not be negative", startTime)
	}
	if math.Mod(startTime, unit) != 0 {
		return 0, apperror.Newf(apperror.CodeInvalidTime,
			"invalid value %v for parameter start_time: value must be 0 or a multiple of %d (for example 0, %d, %d)",
			startTime, s.cfg.BaseUnit, s.cfg.BaseUnit, 2*s.cfg.BaseUnit)
	}
	if startTime > horizon {
		return 0, apperror.Newf(apperror.CodeOutOfRange,
			"invalid value %v for parameter start_time: value exceeds the simulation horizon of %d seconds",
			startTime, s.cfg.Horizon)
	}

	end := horizon
	if endTime != nil {
		end = *endTime
		if math.IsNaN(end) || math.IsInf(end, 0) {
			return 0, apperror.Newf(apperror.CodeInvalidTime,
				"invalid value %v for parameter end_time", end)
		}
		if end < 0 {
			return 0, apperror.Newf(apperror.CodeInvalidTime,
				"invalid value %v for parameter end_time: value must not be negative", end)
		}
		if end <= startTime {
			return 0, apperror.Newf(apperror.CodeInvalidTime,
				"invalid value %v for parameter end_time: value must be greater than start_time", end)
		}
		if math.Mod(end, unit) != 0 {
			return 0, apperror.Newf(apperror.CodeInvalidTime,
				"invalid value %v for parameter end_time: value must be a multiple of %d",
				end, s.cfg.BaseUnit)
		}
		if end > horizon {
			return 0, apperror.Newf(apperror.CodeOutOfRange,
				"invalid value %v for parameter end_time: value must not exceed %d seconds, the maximum time the environment can run",
				end, s.cfg.Horizon)
		}
	}

	return end, nil
}

// Initialize сбрасывает сессию к заданному стартовому времени.
//
// start_time == 0: текущим состоянием становится прекомпилированное
// базовое наблюдение, история пуста, движок не вызывается.
//
// start_time > 0: движок сбрасывается в нулевое состояние и делается
// один прогревочный прогон длиной в базовую единицу с прекомпилированным
// кадром управления. Прогрев обязателен: движок численно неустойчив при
// прямом старте с произвольного ненулевого времени.
func (s *Session) Initialize(ctx context.Context, startTime float64, endTime *float64) (map[string]float64, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.Initialize",
		telemetry.WithAttributes(attribute.Float64(telemetry.AttrSimStartTime, startTime)))
	defer span.End()

	end, err := s.validateInitTimes(startTime, endTime)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if startTime == 0 {
		s.resetData()
		s.simTime = 0
		s.endTime = end
		for k, v := range s.baseline.Outputs {
			s.currentOutputs[k] = v
		}
		for k, v := range s.baseline.Inputs {
			s.currentInputs[k] = v
		}
		s.state = StateReady

		s.publishGauges()
		if m := metrics.Get(); m != nil {
			m.InitializesTotal.WithLabelValues("ok", "false").Inc()
		}
		logger.Log.Info("Simulation initialized", "start_time", 0, "end_time", end)
		return s.fullStateLocked(), nil
	}

	warmupStart := startTime - float64(s.cfg.BaseUnit)

	frame, ok := s.warmup.Frame(warmupStart)
	if !ok {
		err := apperror.Newf(apperror.CodeOutOfRange,
			"no precomputed warmup frame for start_time %v", startTime)
		telemetry.SetError(ctx, err)
		return nil, err
	}

	row, err := s.disturbances.Lookup(warmupStart)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	if err := s.engine.Reset(ctx); err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	// Кадр прогрева плюс возмущения; требуемый напор при прогреве не
	// синтезируется
	names := make([]string, 0, len(frame)+len(disturbance.Variables))
	values := make([]float64, 0, cap(names))
	for _, name := range plant.ControlNames() {
		if v, ok := frame[name]; ok {
			names = append(names, name)
			values = append(values, v)
		}
	}
	for _, dv := range disturbance.Variables {
		v, _ := row.Value(dv)
		names = append(names, dv)
		values = append(values, v)
	}

	res, err := s.engine.Simulate(ctx, warmupStart, startTime, &engine.Input{Names: names, Values: values})
	if err != nil {
		wrapped := apperror.Wrapf(err, apperror.CodeWarmupFailed,
			"failed to simulate the warmup period [%v, %v]", warmupStart, startTime)
		telemetry.SetError(ctx, wrapped)
		if m := metrics.Get(); m != nil {
			m.InitializesTotal.WithLabelValues("error", "true").Inc()
		}
		return nil, wrapped
	}

	s.resetData()
	s.storeResultLocked(res, false)
	s.simTime = startTime
	s.endTime = end
	s.state = StateReady

	s.publishGauges()
	if m := metrics.Get(); m != nil {
		m.InitializesTotal.WithLabelValues("ok", "true").Inc()
	}
	logger.Log.Info("Simulation initialized with warmup",
		"start_time", startTime,
		"end_time", end,
		"warmup_seconds", s.cfg.BaseUnit,
	)

	return s.fullStateLocked(), nil
}

// Advance продвигает симуляцию на один шаг управления.
//
// Шаг разбивается на подынтервалы базовой единицы: возмущения и
// энергобаланс пересчитываются на каждом подынтервале, сумма мощностей
// чиллеров переносится между ними. В историю попадает только отсчёт на
// конечной границе всего шага.
//
// При сбое движка время, история и перенесённая мощность чиллеров
// остаются как до вызова, сессия остаётся готовой: та же или
// скорректированная команда может быть повторена вызывающей стороной.
// Внутренних повторов нет.
func (s *Session) Advance(ctx context.Context, controls plant.ControlFrame) (map[string]float64, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.Advance")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		telemetry.SetError(ctx, apperror.ErrNotInitialized)
		return nil, apperror.ErrNotInitialized
	}

	telemetry.SetAttributes(ctx,
		attribute.Float64(telemetry.AttrSimTime, s.simTime),
		attribute.Int64(telemetry.AttrSimStep, s.step),
	)

	if s.simTime+float64(s.step) > s.endTime {
		err := apperror.Newf(apperror.CodeOutOfRange,
			"advancing from %v by %d seconds would exceed the episode end time %v",
			s.simTime, s.step, s.endTime)
		telemetry.SetError(ctx, err)
		return nil, err
	}

	// Полная валидация до какого-либо взаимодействия с движком
	if err := trajectory.Validate(controls); err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	savedPower := s.lastChillerPower
	unit := float64(s.cfg.BaseUnit)
	iterations := int(math.Ceil(float64(s.step) / unit))

	var res engine.Result
	for i := 0; i < iterations; i++ {
		subStart := s.simTime + unit*float64(i)
		subEnd := s.simTime + unit*float64(i+1)
		if i == iterations-1 {
			subEnd = s.simTime + float64(s.step)
		}

		traj, err := s.builder.Build(subStart, controls, s.lastChillerPower)
		if err != nil {
			s.lastChillerPower = savedPower
			telemetry.SetError(ctx, err)
			return nil, err
		}

		telemetry.SetAttributes(ctx,
			attribute.Int(telemetry.AttrSeriesCount, len(traj.Input.Names)),
			attribute.Float64(telemetry.AttrChillerCount, traj.Counts.Chillers),
			attribute.Float64(telemetry.AttrHexCount, traj.Counts.HeatExchangers),
			attribute.Float64(telemetry.AttrTowerValveCount, traj.Counts.TowerValves),
			attribute.Float64(telemetry.AttrCondenserFlow, traj.CondenserFlow),
			attribute.Float64(telemetry.AttrPredictedHead, traj.Head),
		)

		res, err = s.engine.Simulate(ctx, subStart, subEnd, traj.Input)
		if err != nil {
			// Откат: время и история не изменялись, возвращаем
			// перенесённую мощность
			s.lastChillerPower = savedPower
			telemetry.SetError(ctx, err)
			if m := metrics.Get(); m != nil {
				m.AdvancesTotal.WithLabelValues("error").Inc()
			}
			return nil, err
		}

		s.lastChillerPower = s.chillerPowerSum(res)
	}

	s.storeResultLocked(res, true)
	s.simTime += float64(s.step)
	s.historyTimes = append(s.historyTimes, s.simTime)

	s.publishGauges()
	if m := metrics.Get(); m != nil {
		m.AdvancesTotal.WithLabelValues("ok").Inc()
	}
	logger.Log.Info("Simulation advanced",
		"from", s.simTime-float64(s.step),
		"to", s.simTime,
	)

	return s.fullStateLocked(), nil
}

func (s *Session) chillerPowerSum(res engine.Result) float64 {
	var sum float64
	for i := 1; i <= plant.ChillerUnits; i++ {
		if v, ok := res.Final(fmt.Sprintf("Pchi%d", i)); ok {
			sum += v
		}
	}
	return sum
}

// storeResultLocked извлекает отсчёты на конечной границе интервала.
// store управляет добавлением в историю. Вызывать под мьютексом.
func (s *Session) storeResultLocked(res engine.Result, store bool) {
	for _, name := range plant.OutputNames() {
		v, ok := res.Final(name)
		if !ok {
			v = s.currentOutputs[name]
		}
		s.currentOutputs[name] = v
		if store {
			s.historyOutputs[name] = append(s.historyOutputs[name], v)
		}
	}
	for _, name := range plant.ControlNames() {
		v, ok := res.Final(name)
		if !ok {
			v = s.currentInputs[name]
		}
		s.currentInputs[name] = v
		if store {
			s.historyInputs[name] = append(s.historyInputs[name], v)
		}
	}
}

func (s *Session) publishGauges() {
	if m := metrics.Get(); m != nil {
		m.SimulationTime.Set(s.simTime)
		m.HistoryLength.Set(float64(len(s.historyTimes)))
	}
}

// fullStateLocked собирает плоское текущее состояние: время, выходы и
// последние применённые входы. Вызывать под мьютексом.
func (s *Session) fullStateLocked() map[string]float64 {
	state := make(map[string]float64, 1+len(s.currentOutputs)+len(s.currentInputs))
	state["time"] = s.simTime
	for k, v := range s.currentOutputs {
		state[k] = v
	}
	for k, v := range s.currentInputs {
		state[k] = v
	}
	return state
}

// CurrentState возвращает копию текущего состояния без побочных эффектов
func (s *Session) CurrentState() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fullStateLocked()
}

// HistoryLength возвращает число записей истории
func (s *Session) HistoryLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.historyTimes)
}

// Results возвращает срезы сохранённых траекторий выходов и входов по
// именам точек в окне [startTime, finalTime]. Неизвестные имена точек
// отклоняются.
func (s *Session) Results(pointNames []string, startTime, finalTime float64) (map[string][]float64, error) {
	if math.IsNaN(startTime) || math.IsInf(startTime, 0) {
		return nil, apperror.Newf(apperror.CodeInvalidWindow,
			"invalid value %v for parameter start_time", startTime)
	}
	if math.IsNaN(finalTime) || math.IsInf(finalTime, 0) {
		return nil, apperror.Newf(apperror.CodeInvalidWindow,
			"invalid value %v for parameter final_time", finalTime)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := make(map[string][]float64, len(pointNames)+1)
	for _, name := range pointNames {
		if series, ok := s.historyOutputs[name]; ok {
			payload[name] = series
		} else if series, ok := s.historyInputs[name]; ok {
			payload[name] = series
		} else {
			return nil, apperror.Newf(apperror.CodeUnknownPoint,
				"invalid point name %q in parameter point_names; check the lists of available inputs and measurements",
				name).WithField(name)
		}
	}

	if len(payload) == 0 || len(s.historyTimes) == 0 {
		out := make(map[string][]float64, len(payload)+1)
		for name := range payload {
			out[name] = []float64{}
		}
		out["time"] = []float64{}
		return out, nil
	}

	// Границы окна: первый отсчёт не раньше startTime, последний не
	// позже finalTime
	i1 := 0
	for i1 < len(s.historyTimes) && s.historyTimes[i1] < startTime {
		i1++
	}
	i2 := len(s.historyTimes)
	for i2 > 0 && s.historyTimes[i2-1] > finalTime {
		i2--
	}
	if i1 >= i2 {
		i1, i2 = 0, 0
	}

	out := make(map[string][]float64, len(payload)+1)
	for name, series := range payload {
		out[name] = append([]float64{}, series[i1:i2]...)
	}
	out["time"] = append([]float64{}, s.historyTimes[i1:i2]...)

	return out, nil
}
