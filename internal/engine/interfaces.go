// Package engine определяет контракт чёрного ящика физического движка и
// HTTP клиент к нему. Внутренности решателя не воспроизводятся, только
// узкий вызывной контракт: сброс и прогон интервала с именованной
// траекторией входов.
package engine

import "context"

// SolverOptions опции численного решателя, фиксируются при создании сессии
type SolverOptions struct {
	Solver       string   `json:"solver"`
	RelTolerance float64  `json:"rtol"`
	AbsTolerance float64  `json:"atol"`
	Filter       []string `json:"filter,omitempty"`
}

// Input именованная траектория входов на один интервал. Значения
// постоянны внутри интервала, порядок имён должен совпадать с
// объявленным набором входов движка.
type Input struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Result именованные выходные ряды за интервал. Движок может внутренне
// дробить интервал на более мелкие шаги, тогда в ряде больше одного
// отсчёта.
type Result map[string][]float64

// Final возвращает значение ряда на конечной границе интервала
func (r Result) Final(name string) (float64, bool) {
	series, ok := r[name]
	if !ok || len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// Engine контракт физического движка
type Engine interface {
	// Reset возвращает движок в нулевое состояние
	Reset(ctx context.Context) error

	// Simulate прогоняет движок на интервале [start, end] с заданной
	// траекторией входов и возвращает именованные выходные ряды.
	// Блокирующий, потенциально долгий вызов; таймаут внутри не
	// навязывается, отмена шага не поддерживается.
	Simulate(ctx context.Context, start, end float64, input *Input) (Result, error)
}
