package surrogate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityWeights собирает модель, пропускающую нормализованную сумму
// входов на выход без скрытых слоёв. Пригодна для проверки арифметики
// руками.
func identityWeights() *Weights {
	return &Weights{
		InputMin:  []float64{0, 0, 0, 0},
		InputMax:  []float64{6, 6, 12, 2},
		OutputMin: 10,
		OutputMax: 50,
		Layers: []LayerWeights{
			{
				Weights: [][]float64{{0.25, 0.25, 0.25, 0.25}},
				Biases:  []float64{0},
			},
		},
	}
}

func TestNew_ShapeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Weights)
	}{
		{"short input min", func(w *Weights) { w.InputMin = []float64{0, 0} }},
		{"no layers", func(w *Weights) { w.Layers = nil }},
		{"degenerate output range", func(w *Weights) { w.OutputMax = w.OutputMin }},
		{"bias mismatch", func(w *Weights) { w.Layers[0].Biases = []float64{0, 0} }},
		{"row width mismatch", func(w *Weights) {
			w.Layers[0].Weights = [][]float64{{1, 2, 3}}
		}},
		{"multi output final layer", func(w *Weights) {
			w.Layers[0].Weights = [][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}}
			w.Layers[0].Biases = []float64{0, 0}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := identityWeights()
			tc.mutate(w)
			_, err := New(w)
			assert.Error(t, err)
		})
	}
}

func TestPredict_LinearModel(t *testing.T) {
	e, err := New(identityWeights())
	require.NoError(t, err)

	// Нормализованные входы: 3/6, 3/6, 6/12, 1/2 = 0.5 каждый,
	// выход слоя 0.5, денормализация 0.5*40+10 = 30
	head := e.Predict(3, 3, 6, 1)
	assert.InDelta(t, 30, head, 1e-12)
}

func TestPredict_Deterministic(t *testing.T) {
	w := identityWeights()
	w.Layers = []LayerWeights{
		{
			Weights: [][]float64{
				{0.3, -0.7, 0.11, 1.9},
				{-1.2, 0.4, 0.05, -0.33},
				{0.8, 0.8, -0.8, 0.01},
			},
			Biases: []float64{0.1, -0.2, 0.3},
		},
		{
			Weights: [][]float64{{0.5, -0.25, 1.5}},
			Biases:  []float64{-0.05},
		},
	}

	e, err := New(w)
	require.NoError(t, err)

	first := e.Predict(2, 1, 4, 0.382)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, e.Predict(2, 1, 4, 0.382), "prediction must be bit identical")
	}
}

func TestPredict_ReLUAppliedToHiddenLayersOnly(t *testing.T) {
	w := identityWeights()
	w.Layers = []LayerWeights{
		{
			// Скрытый слой всегда отрицателен, ReLU обнуляет его
			Weights: [][]float64{{-1, -1, -1, -1}},
			Biases:  []float64{-1},
		},
		{
			// Выходной слой отрицателен и ReLU не подвергается
			Weights: [][]float64{{1}},
			Biases:  []float64{-0.5},
		},
	}

	e, err := New(w)
	require.NoError(t, err)

	// Активация скрытого слоя 0, выход -0.5, денормализация -0.5*40+10
	assert.InDelta(t, -10, e.Predict(1, 1, 1, 1), 1e-12)
}

func TestPredict_ExtrapolatesWithoutClamping(t *testing.T) {
	e, err := New(identityWeights())
	require.NoError(t, err)

	// 12 чиллеров вне обученного диапазона [0, 6]: нормализованный вход 2,
	// выход не обрезается границами output_low/high_limit
	head := e.Predict(12, 0, 0, 0)
	assert.InDelta(t, 30, head, 1e-12)

	high := e.Predict(12, 12, 24, 4)
	assert.Greater(t, high, 50.0, "extrapolated output must not be clamped to the training range")
}
