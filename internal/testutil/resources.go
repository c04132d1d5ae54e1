package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coolsim/internal/plant"
	"coolsim/internal/surrogate"
)

// Horizon горизонт тестового комплекта ресурсов, с
const Horizon = 1200

// WriteResources раскладывает во временный каталог минимальный комплект
// ресурсов: таблицу возмущений и кадры прогрева на весь горизонт, базовое
// наблюдение и линейные веса суррогата.
func WriteResources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var disturbances strings.Builder
	disturbances.WriteString("time,Twb_outside,Mchw,Tchw_r\n")
	for ts := int64(0); ts <= Horizon; ts += 300 {
		fmt.Fprintf(&disturbances, "%d,295.15,310.0,288.65\n", ts)
	}
	mustWrite(t, filepath.Join(dir, "Disturbance.csv"), disturbances.String())

	names := plant.ControlNames()
	var warmup strings.Builder
	warmup.WriteString("time," + strings.Join(names, ",") + "\n")
	for ts := int64(0); ts < Horizon; ts += 300 {
		fmt.Fprintf(&warmup, "%d", ts)
		for range names {
			warmup.WriteString(",0")
		}
		warmup.WriteString("\n")
	}
	mustWrite(t, filepath.Join(dir, "Initialization_actions.csv"), warmup.String())

	cols := []string{"time"}
	cols = append(cols, plant.OutputNames()...)
	cols = append(cols, names...)
	var baseline strings.Builder
	baseline.WriteString(strings.Join(cols, ",") + "\n0")
	for range cols[1:] {
		baseline.WriteString(",1")
	}
	baseline.WriteString("\n")
	mustWrite(t, filepath.Join(dir, "Initialization_observation0.csv"), baseline.String())

	weights := surrogate.Weights{
		InputMin:  []float64{0, 0, 0, 0},
		InputMax:  []float64{6, 6, 12, 2},
		OutputMin: 10,
		OutputMax: 50,
		Layers: []surrogate.LayerWeights{
			{
				Weights: [][]float64{{0.25, 0.25, 0.25, 0.25}},
				Biases:  []float64{0},
			},
		},
	}
	data, err := json.Marshal(weights)
	if err != nil {
		t.Fatalf("failed to encode surrogate weights: %v", err)
	}
	mustWrite(t, filepath.Join(dir, "mlp.json"), string(data))

	mustWrite(t, filepath.Join(dir, "version.txt"), "0.2.0\n")

	return dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
