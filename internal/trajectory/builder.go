// Package trajectory собирает именованную траекторию входов физического
// движка на один интервал: кадр управления, возмущения на начало окна и
// синтезированный требуемый напор.
package trajectory

import (
	"fmt"
	"math"

	"coolsim/internal/disturbance"
	"coolsim/internal/engine"
	"coolsim/internal/plant"
	"coolsim/internal/surrogate"
	"coolsim/pkg/apperror"
)

// HeadInputName имя синтезируемого входа движка
const HeadInputName = "Head_required"

// Counts количество активного оборудования, выведенное из кадра управления
type Counts struct {
	Chillers       float64
	HeatExchangers float64
	TowerValves    float64
}

// Trajectory результат сборки: вход движка и производные величины
type Trajectory struct {
	Input          *engine.Input
	Counts         Counts
	CondenserFlow  float64
	Head           float64
	HeadOverridden bool
}

// Builder собирает траектории. Три вычисления строго последовательны:
// напор зависит от расхода, расход от возмущений.
type Builder struct {
	disturbances *disturbance.Table
	estimator    *surrogate.HeadEstimator
}

// NewBuilder создаёт сборщик траекторий
func NewBuilder(table *disturbance.Table, estimator *surrogate.HeadEstimator) *Builder {
	return &Builder{
		disturbances: table,
		estimator:    estimator,
	}
}

// Validate проверяет, что кадр управления содержит в точности
// декларированный набор входов. Единственный допустимый дополнительный
// ключ — Head_required, которым вызывающая сторона может переопределить
// суррогатную оценку.
func Validate(controls plant.ControlFrame) error {
	for name, value := range controls {
		if name == HeadInputName {
			continue
		}
		if !plant.IsControl(name) {
			return apperror.Newf(apperror.CodeUnknownInput,
				"unknown control input %q; check the list of declared inputs", name).
				WithField(name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return apperror.Newf(apperror.CodeInvalidValue,
				"invalid value %v for input %q", value, name).
				WithField(name)
		}
	}

	for _, name := range plant.ControlNames() {
		if _, ok := controls[name]; !ok {
			return apperror.Newf(apperror.CodeMissingInput,
				"control input %q is missing; a complete control frame over all %d declared inputs is required",
				name, plant.ControlCount()).
				WithField(name)
		}
	}

	return nil
}

// ActivityCounts выводит количество активного оборудования из кадра:
// включённые чиллеры, открытые конденсаторные задвижки контура
// теплообменника и открытые задвижки градирен с учётом двух вентиляторов
// на ячейку.
func ActivityCounts(controls plant.ControlFrame) Counts {
	var c Counts
	for i := 1; i <= plant.ChillerUnits; i++ {
		c.Chillers += controls[fmt.Sprintf("CHI%02d", i)]
		c.HeatExchangers += controls[fmt.Sprintf("CHI%02d_CW%d", i, plant.CondenserPath)]
	}
	for i := 1; i <= plant.TowerUnits; i++ {
		c.TowerValves += controls[fmt.Sprintf("U_CT%d", i)]
	}
	c.TowerValves *= plant.FansPerTower
	return c
}

// Build собирает траекторию для окна, начинающегося в startTime.
// lastChillerPower — суммарная мощность чиллеров с предыдущего шага,
// участвует в энергобалансе конденсаторного контура.
func (b *Builder) Build(startTime float64, controls plant.ControlFrame, lastChillerPower float64) (*Trajectory, error) {
	if err := Validate(controls); err != nil {
		return nil, err
	}

	counts := ActivityCounts(controls)

	row, err := b.disturbances.Lookup(startTime)
	if err != nil {
		return nil, err
	}

	setpoint := controls["Tchws_set_CHI"]

	// Энергобаланс считается в кг/с, суррогат обучен на т/с
	flow := plant.CondenserFlow(row.Mchw, lastChillerPower, row.TchwReturn, setpoint) / 1000

	head := b.estimator.Predict(counts.Chillers, counts.HeatExchangers, counts.TowerValves, flow)

	overridden := false
	if v, ok := controls[HeadInputName]; ok {
		head = v
		overridden = true
	}

	controlNames := plant.ControlNames()
	names := make([]string, 0, len(controlNames)+len(disturbance.Variables)+1)
	values := make([]float64, 0, cap(names))

	for _, name := range controlNames {
		names = append(names, name)
		values = append(values, controls[name])
	}
	for _, name := range disturbance.Variables {
		v, _ := row.Value(name)
		names = append(names, name)
		values = append(values, v)
	}
	names = append(names, HeadInputName)
	values = append(values, head)

	return &Trajectory{
		Input:          &engine.Input{Names: names, Values: values},
		Counts:         counts,
		CondenserFlow:  flow,
		Head:           head,
		HeadOverridden: overridden,
	}, nil
}
