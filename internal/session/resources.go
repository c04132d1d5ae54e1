package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"coolsim/internal/plant"
)

// Имена файлов ресурсов внутри каталога ресурсов
const (
	DisturbanceFile = "Disturbance.csv"
	WarmupFile      = "Initialization_actions.csv"
	BaselineFile    = "Initialization_observation0.csv"
	WeightsFile     = "mlp.json"
	VersionFile     = "version.txt"
)

// WarmupTable прекомпилированные кадры управления для прогрева движка,
// проиндексированные временем начала интервала прогрева.
type WarmupTable struct {
	frames map[int64]plant.ControlFrame
}

// Frame возвращает кадр прогрева для заданного времени
func (w *WarmupTable) Frame(simTime float64) (plant.ControlFrame, bool) {
	frame, ok := w.frames[int64(simTime)]
	return frame, ok
}

// Len возвращает количество кадров
func (w *WarmupTable) Len() int {
	return len(w.frames)
}

// LoadWarmupActions читает таблицу кадров прогрева. Колонки: time плюс
// декларированные входы управления.
func LoadWarmupActions(path string) (*WarmupTable, error) {
	rows, err := readCSVMaps(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load warmup actions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("warmup actions table %s is empty", path)
	}

	table := &WarmupTable{frames: make(map[int64]plant.ControlFrame, len(rows))}
	for i, row := range rows {
		t, ok := row["time"]
		if !ok {
			return nil, fmt.Errorf("warmup actions row %d has no time column", i)
		}

		frame := make(plant.ControlFrame, len(row)-1)
		for key, v := range row {
			if key == "time" || !plant.IsControl(key) {
				continue
			}
			frame[key] = v
		}

		table.frames[int64(t)] = frame
	}

	return table, nil
}

// Baseline прекомпилированное состояние системы в нулевой момент времени
type Baseline struct {
	Outputs map[string]float64
	Inputs  map[string]float64
}

// LoadBaseline читает наблюдение нулевого момента: одна строка с
// колонками time, декларированные выходы и входы.
func LoadBaseline(path string) (*Baseline, error) {
	rows, err := readCSVMaps(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline observation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("baseline observation %s is empty", path)
	}

	b := &Baseline{
		Outputs: make(map[string]float64),
		Inputs:  make(map[string]float64),
	}

	for key, v := range rows[0] {
		switch {
		case key == "time":
			// Нулевой момент, время в состояние не пишем
		case plant.IsOutput(key):
			b.Outputs[key] = v
		case plant.IsControl(key):
			b.Inputs[key] = v
		}
	}

	if len(b.Outputs) != plant.OutputCount() {
		return nil, fmt.Errorf("baseline observation covers %d of %d declared outputs",
			len(b.Outputs), plant.OutputCount())
	}

	return b, nil
}

// LoadVersion читает номер версии тест-кейса
func LoadVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, VersionFile))
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// readCSVMaps читает CSV в список строк вида имя колонки -> число
func readCSVMaps(path string) ([]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]float64, 0, len(raw))
	for i, rec := range raw {
		row := make(map[string]float64, len(rec))
		for key, val := range rec {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s holds non-numeric value %q", i, key, val)
			}
			row[key] = v
		}
		rows = append(rows, row)
	}

	return rows, nil
}
