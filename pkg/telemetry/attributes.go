package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Симуляция
	AttrSimTime      = "simulation.time_seconds"
	AttrSimStep      = "simulation.step_seconds"
	AttrSimStartTime = "simulation.start_time_seconds"
	AttrSimEndTime   = "simulation.end_time_seconds"
	AttrHistoryLen   = "simulation.history_length"

	// Траектория
	AttrSeriesCount       = "trajectory.series_count"
	AttrChillerCount      = "trajectory.chiller_count"
	AttrHexCount          = "trajectory.heat_exchanger_count"
	AttrTowerValveCount   = "trajectory.tower_valve_count"
	AttrCondenserFlow     = "trajectory.condenser_flow"
	AttrPredictedHead     = "trajectory.predicted_head_meters"

	// Движок
	AttrEngineOp    = "engine.op"
	AttrEngineStart = "engine.start_seconds"
	AttrEngineEnd   = "engine.end_seconds"
)

// WindowAttributes возвращает атрибуты окна симуляции
func WindowAttributes(start, end float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrEngineStart, start),
		attribute.Float64(AttrEngineEnd, end),
	}
}
