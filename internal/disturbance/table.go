// Package disturbance загружает и отдаёт временной ряд внешних воздействий:
// температуру мокрого термометра, расход и температуру обратной
// охлаждённой воды.
package disturbance

import (
	"fmt"
	"math"
	"os"

	"github.com/gocarina/gocsv"

	"coolsim/pkg/apperror"
)

// Имена переменных возмущений в порядке объявления у движка
var Variables = []string{"Twb_outside", "Mchw", "Tchw_r"}

// Row одна строка таблицы возмущений
type Row struct {
	Time       float64 `csv:"time"`
	TwbOutside float64 `csv:"Twb_outside"`
	Mchw       float64 `csv:"Mchw"`
	TchwReturn float64 `csv:"Tchw_r"`
}

// Value возвращает значение переменной по имени
func (r Row) Value(name string) (float64, bool) {
	switch name {
	case "Twb_outside":
		return r.TwbOutside, true
	case "Mchw":
		return r.Mchw, true
	case "Tchw_r":
		return r.TchwReturn, true
	}
	return 0, false
}

// Table таблица возмущений, проиндексированная абсолютным временем
// симуляции. Загружается один раз, далее только чтение.
type Table struct {
	rows     map[int64]Row
	baseUnit int64
	minTime  int64
	maxTime  int64
}

// Load читает таблицу из CSV. baseUnit задаёт шаг дискретизации таблицы
// в секундах.
func Load(path string, baseUnit int64) (*Table, error) {
	if baseUnit <= 0 {
		return nil, fmt.Errorf("base unit must be positive, got %d", baseUnit)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open disturbance table: %w", err)
	}
	defer f.Close()

	var records []Row
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("failed to parse disturbance table: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("disturbance table %s is empty", path)
	}

	t := &Table{
		rows:     make(map[int64]Row, len(records)),
		baseUnit: baseUnit,
		minTime:  math.MaxInt64,
		maxTime:  math.MinInt64,
	}

	for _, rec := range records {
		key := int64(rec.Time)
		t.rows[key] = rec
		if key < t.minTime {
			t.minTime = key
		}
		if key > t.maxTime {
			t.maxTime = key
		}
	}

	return t, nil
}

// Lookup возвращает строку, чьё время ближайшее снизу к запрошенному
// (ступенчатая интерполяция). Для времени, кратного базовой единице,
// ответ точный. Запрос вне покрытого диапазона отклоняется, экстраполяции
// нет.
func (t *Table) Lookup(simTime float64) (Row, error) {
	if simTime < float64(t.minTime) || simTime > float64(t.maxTime) {
		return Row{}, apperror.Newf(apperror.CodeOutOfRange,
			"time %v is outside the disturbance table range [%d, %d]",
			simTime, t.minTime, t.maxTime)
	}

	key := (int64(simTime) / t.baseUnit) * t.baseUnit
	row, ok := t.rows[key]
	if !ok {
		return Row{}, apperror.Newf(apperror.CodeOutOfRange,
			"no disturbance row recorded at %d", key)
	}

	return row, nil
}

// Horizon возвращает последнее покрытое таблицей время
func (t *Table) Horizon() int64 {
	return t.maxTime
}

// Len возвращает количество строк
func (t *Table) Len() int {
	return len(t.rows)
}
