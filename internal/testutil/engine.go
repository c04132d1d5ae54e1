// Package testutil содержит тестовые двойники: скриптуемый фальшивый
// физический движок со счётчиками вызовов.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"coolsim/internal/engine"
	"coolsim/internal/plant"
)

// FakeEngine скриптуемый движок для тестов
type FakeEngine struct {
	mu sync.Mutex

	// Счётчики вызовов
	ResetCalls    int
	SimulateCalls int

	// Управление поведением
	ResetErr     error
	SimulateErr  error
	FailSimulate int // завершить ошибкой первые N вызовов Simulate

	// Script подменяет генерацию результата. По умолчанию
	// используется DefaultResult.
	Script func(start, end float64, input *engine.Input) engine.Result

	// Последний вызов
	LastStart float64
	LastEnd   float64
	LastInput *engine.Input
}

// NewFakeEngine создаёт фальшивый движок
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (f *FakeEngine) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCalls++
	return f.ResetErr
}

func (f *FakeEngine) Simulate(ctx context.Context, start, end float64, input *engine.Input) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SimulateCalls++
	f.LastStart = start
	f.LastEnd = end
	f.LastInput = input

	if f.SimulateErr != nil {
		return nil, f.SimulateErr
	}
	if f.FailSimulate > 0 {
		f.FailSimulate--
		return nil, fmt.Errorf("scripted engine failure on [%v, %v]", start, end)
	}

	if f.Script != nil {
		return f.Script(start, end, input), nil
	}
	return DefaultResult(end, input), nil
}

// Calls возвращает суммарное число взаимодействий с движком
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResetCalls + f.SimulateCalls
}

// DefaultResult строит правдоподобный результат интервала: мощности
// пропорциональны включённому оборудованию, входные ряды отражаются как
// есть, время на конечной границе.
func DefaultResult(end float64, input *engine.Input) engine.Result {
	inputs := make(map[string]float64, len(input.Names))
	for i, name := range input.Names {
		inputs[name] = input.Values[i]
	}

	res := engine.Result{"time": {end}}

	var chillersSum, fansSum float64
	for i := 1; i <= plant.ChillerUnits; i++ {
		on := inputs[fmt.Sprintf("CHI%02d", i)]
		p := 152000.0 * on
		res[fmt.Sprintf("Pchi%d", i)] = []float64{p}
		chillersSum += p
	}
	for i := 1; i <= plant.TowerUnits; i++ {
		open := inputs[fmt.Sprintf("U_CT%d", i)]
		for fan := 1; fan <= plant.FansPerTower; fan++ {
			ratio := inputs[fmt.Sprintf("Ffan_CT%d_%02d", i, fan)]
			p := 8300.0 * open * ratio
			res[fmt.Sprintf("Pfan_CT%d_%02d", i, fan)] = []float64{p}
			fansSum += p
		}
		res[fmt.Sprintf("Tcwr_CT%d", i)] = []float64{302.7}
		res[fmt.Sprintf("Tlvg_CT%d", i)] = []float64{297.9}
	}
	for i := 1; i <= plant.PumpUnits; i++ {
		cdwpOn := inputs[fmt.Sprintf("CDWP%02d_ONOFF", i)]
		chwpOn := inputs[fmt.Sprintf("CHWP%02d_ONOFF", i)]
		res[fmt.Sprintf("H_CDWP%02d", i)] = []float64{28.4 * cdwpOn}
		res[fmt.Sprintf("H_CHWP%02d", i)] = []float64{24.1 * chwpOn}
		res[fmt.Sprintf("eta_CDWP%02d", i)] = []float64{0.71 * cdwpOn}
		res[fmt.Sprintf("eta_CHWP%02d", i)] = []float64{0.68 * chwpOn}
	}

	res["P_Chillers_sum"] = []float64{chillersSum}
	res["P_CDWPs_sum"] = []float64{23400}
	res["P_CHWPs_sum"] = []float64{21150}
	res["P_CTfans_sum"] = []float64{fansSum}
	res["Tchw_supply"] = []float64{286.57}
	res["Tcw_supply"] = []float64{297.95}
	res["Tcw_returnPipe"] = []float64{302.64}
	res["VolumeFlowRate_cw"] = []float64{0.382}

	// Входные ряды отражаются как есть, движок их тоже фильтрует
	for name, v := range inputs {
		res[name] = []float64{v}
	}

	return res
}
