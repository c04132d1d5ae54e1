// Package surrogate реализует обученный оффлайн регрессор требуемого
// напора насосов: небольшой полносвязный перцептрон с фиксированными
// диапазонами нормализации входов и выхода.
package surrogate

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"coolsim/pkg/logger"
	"coolsim/pkg/metrics"
)

// InputSize количество входов модели: число активных чиллеров,
// теплообменников, задвижек градирен и расход конденсаторной воды.
const InputSize = 4

// LayerWeights веса одного полносвязного слоя
type LayerWeights struct {
	Weights [][]float64 `json:"weights"` // [out][in]
	Biases  []float64   `json:"biases"`
}

// Weights сериализованная модель с диапазонами нормализации
type Weights struct {
	InputMin  []float64      `json:"input_normalization_minimum"`
	InputMax  []float64      `json:"input_normalization_maximum"`
	OutputMin float64        `json:"output_low_limit"`
	OutputMax float64        `json:"output_high_limit"`
	Layers    []LayerWeights `json:"layers"`
}

// HeadEstimator предсказывает требуемый напор. Чистая функция своих
// четырёх аргументов: внутреннего состояния нет, повторный вызов с теми
// же входами даёт побитово тот же результат.
type HeadEstimator struct {
	inputMin  *mat.VecDense
	inputMax  *mat.VecDense
	outputMin float64
	outputMax float64

	weights []*mat.Dense
	biases  []*mat.VecDense
}

// Load читает веса модели из JSON файла
func Load(path string) (*HeadEstimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read surrogate weights: %w", err)
	}

	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse surrogate weights: %w", err)
	}

	return New(&w)
}

// New строит эстиматор из загруженных весов
func New(w *Weights) (*HeadEstimator, error) {
	if len(w.InputMin) != InputSize || len(w.InputMax) != InputSize {
		return nil, fmt.Errorf("normalization ranges must have %d entries, got %d/%d",
			InputSize, len(w.InputMin), len(w.InputMax))
	}
	if len(w.Layers) == 0 {
		return nil, fmt.Errorf("surrogate model has no layers")
	}
	if w.OutputMax == w.OutputMin {
		return nil, fmt.Errorf("degenerate output normalization range [%v, %v]", w.OutputMin, w.OutputMax)
	}

	e := &HeadEstimator{
		inputMin:  mat.NewVecDense(InputSize, append([]float64(nil), w.InputMin...)),
		inputMax:  mat.NewVecDense(InputSize, append([]float64(nil), w.InputMax...)),
		outputMin: w.OutputMin,
		outputMax: w.OutputMax,
	}

	prevSize := InputSize
	for i, layer := range w.Layers {
		rows := len(layer.Weights)
		if rows == 0 || rows != len(layer.Biases) {
			return nil, fmt.Errorf("layer %d: weight rows (%d) and biases (%d) mismatch",
				i, rows, len(layer.Biases))
		}

		flat := make([]float64, 0, rows*prevSize)
		for _, row := range layer.Weights {
			if len(row) != prevSize {
				return nil, fmt.Errorf("layer %d: expected %d inputs per row, got %d",
					i, prevSize, len(row))
			}
			flat = append(flat, row...)
		}

		e.weights = append(e.weights, mat.NewDense(rows, prevSize, flat))
		e.biases = append(e.biases, mat.NewVecDense(rows, append([]float64(nil), layer.Biases...)))
		prevSize = rows
	}

	if prevSize != 1 {
		return nil, fmt.Errorf("final layer must produce a single output, got %d", prevSize)
	}

	return e, nil
}

// Predict возвращает требуемый напор в метрах для заданного числа
// активных чиллеров, теплообменников, задвижек градирен и расхода
// конденсаторной воды.
//
// Входы вне обученных диапазонов не отклоняются и не обрезаются: модель
// молча экстраполирует, случай логируется для диагностики.
func (e *HeadEstimator) Predict(chillerCount, hexCount, towerValveCount, condenserFlow float64) float64 {
	x := mat.NewVecDense(InputSize, []float64{
		chillerCount, hexCount, towerValveCount, condenserFlow,
	})

	normalized := mat.NewVecDense(InputSize, nil)
	extrapolating := false
	for i := 0; i < InputSize; i++ {
		lo, hi := e.inputMin.AtVec(i), e.inputMax.AtVec(i)
		v := (x.AtVec(i) - lo) / (hi - lo)
		if v < 0 || v > 1 {
			extrapolating = true
		}
		normalized.SetVec(i, v)
	}

	if extrapolating {
		logger.Log.Warn("Surrogate input outside training range, extrapolating",
			"chiller_count", chillerCount,
			"heat_exchanger_count", hexCount,
			"tower_valve_count", towerValveCount,
			"condenser_flow", condenserFlow,
		)
		if m := metrics.Get(); m != nil {
			m.HeadExtrapolations.Inc()
		}
	}

	activation := normalized
	last := len(e.weights) - 1
	for i := range e.weights {
		rows, _ := e.weights[i].Dims()
		next := mat.NewVecDense(rows, nil)
		next.MulVec(e.weights[i], activation)
		next.AddVec(next, e.biases[i])

		// ReLU на всех слоях кроме выходного
		if i != last {
			for j := 0; j < rows; j++ {
				if next.AtVec(j) < 0 {
					next.SetVec(j, 0)
				}
			}
		}
		activation = next
	}

	head := activation.AtVec(0)*(e.outputMax-e.outputMin) + e.outputMin

	if m := metrics.Get(); m != nil {
		m.HeadPredictions.Inc()
		m.PredictedHead.Set(head)
	}

	return head
}
