package plant

// Физические константы контура
const (
	// WaterSpecificHeat удельная теплоёмкость воды, Дж/(кг·К)
	WaterSpecificHeat = 4200.0

	// DefaultChilledSupplySetpoint уставка температуры подачи охлаждённой
	// воды чиллера по умолчанию, К
	DefaultChilledSupplySetpoint = 286.55

	// DefaultHexSupplySetpoint уставка температуры подачи охлаждённой
	// воды теплообменника по умолчанию, К
	DefaultHexSupplySetpoint = 287.65
)

// CondenserFlow вычисляет массовый расход конденсаторной воды из
// энергобаланса: расход охлаждённой воды плюс тепловая мощность чиллеров,
// отнесённая к теплоёмкости и перепаду температур.
//
// При нулевом перепаде (чиллеры выключены, уставка равна температуре
// обратной воды) добавочный член принимается равным нулю. Ветка
// обязательна, иначе деление на ноль.
func CondenserFlow(chilledFlow, chillerPowerSum, chilledReturnTemp, chillerSupplySetpoint float64) float64 {
	deltaT := chilledReturnTemp - chillerSupplySetpoint
	if deltaT == 0 {
		return chilledFlow
	}
	return chilledFlow + chillerPowerSum/(WaterSpecificHeat*deltaT)
}
