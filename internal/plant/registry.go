package plant

import "fmt"

// Семейства оборудования станции: 6 чиллеров, 6 конденсаторных и 6
// чиллерных насосов, 6 градирен по 2 вентилятора, по 4 задвижки на чиллер
// с каждой стороны.
const (
	ChillerUnits   = 6
	TowerUnits     = 6
	FansPerTower   = 2
	PumpUnits      = 6
	ValvesPerSide  = 4
	CondenserPath  = 3 // CW3 — контур теплообменника
)

// Metadata описание переменной для выдачи наружу
type Metadata struct {
	Description string `json:"Description"`
}

var (
	controlNames []string
	outputNames  []string

	controlSet map[string]struct{}
	outputSet  map[string]struct{}

	controlMetadata map[string]Metadata
	outputMetadata  map[string]Metadata
)

func init() {
	controlNames = buildControlNames()
	outputNames = buildOutputNames()

	controlSet = make(map[string]struct{}, len(controlNames))
	for _, name := range controlNames {
		controlSet[name] = struct{}{}
	}

	outputSet = make(map[string]struct{}, len(outputNames))
	for _, name := range outputNames {
		outputSet[name] = struct{}{}
	}

	controlMetadata = buildControlMetadata()
	outputMetadata = buildOutputMetadata()
}

// Порядок имён фиксирован и совпадает с объявлением входов физического
// движка: задвижки градирен, вентиляторы, обороты насосов, чиллеры,
// задвижки конденсаторной и чиллерной стороны, выключатели насосов,
// групповые уставки.
func buildControlNames() []string {
	names := make([]string, 0, 100)

	for i := 1; i <= TowerUnits; i++ {
		names = append(names, fmt.Sprintf("U_CT%d", i))
	}
	for i := 1; i <= TowerUnits; i++ {
		for f := 1; f <= FansPerTower; f++ {
			names = append(names, fmt.Sprintf("Ffan_CT%d_%02d", i, f))
		}
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("CDWP%02d_rpm", i))
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("CHWP%02d_rpm", i))
	}
	for i := 1; i <= ChillerUnits; i++ {
		names = append(names, fmt.Sprintf("CHI%02d", i))
	}
	for i := 1; i <= ChillerUnits; i++ {
		for v := 1; v <= ValvesPerSide; v++ {
			names = append(names, fmt.Sprintf("CHI%02d_CW%d", i, v))
		}
	}
	for i := 1; i <= ChillerUnits; i++ {
		for v := 1; v <= ValvesPerSide; v++ {
			names = append(names, fmt.Sprintf("CHI%02d_CHW%d", i, v))
		}
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("CDWP%02d_ONOFF", i))
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("CHWP%02d_ONOFF", i))
	}

	names = append(names,
		"CWP_speedInput",
		"Tchws_set_CHI",
		"Tchws_set_HEX",
		"CWP_activatedNumber",
	)

	return names
}

func buildOutputNames() []string {
	names := make([]string, 0, 62)

	for i := 1; i <= ChillerUnits; i++ {
		names = append(names, fmt.Sprintf("Pchi%d", i))
	}
	for i := 1; i <= TowerUnits; i++ {
		for f := 1; f <= FansPerTower; f++ {
			names = append(names, fmt.Sprintf("Pfan_CT%d_%02d", i, f))
		}
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("H_CDWP%02d", i))
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("H_CHWP%02d", i))
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("eta_CDWP%02d", i))
	}
	for i := 1; i <= PumpUnits; i++ {
		names = append(names, fmt.Sprintf("eta_CHWP%02d", i))
	}

	names = append(names,
		"P_Chillers_sum",
		"P_CDWPs_sum",
		"P_CHWPs_sum",
		"P_CTfans_sum",
		"Tchw_supply",
		"Tcw_supply",
		"Tcw_returnPipe",
	)

	for i := 1; i <= TowerUnits; i++ {
		names = append(names, fmt.Sprintf("Tcwr_CT%d", i))
	}
	for i := 1; i <= TowerUnits; i++ {
		names = append(names, fmt.Sprintf("Tlvg_CT%d", i))
	}

	names = append(names, "VolumeFlowRate_cw")

	return names
}

func buildControlMetadata() map[string]Metadata {
	md := make(map[string]Metadata, len(controlNames))

	for i := 1; i <= TowerUnits; i++ {
		md[fmt.Sprintf("U_CT%d", i)] = Metadata{
			Description: fmt.Sprintf("Valve of cooling tower %d OPEN/CLOSE", i),
		}
		for f := 1; f <= FansPerTower; f++ {
			md[fmt.Sprintf("Ffan_CT%d_%02d", i, f)] = Metadata{
				Description: fmt.Sprintf("Normalized speed ratio of fan %02d of cooling tower %d", f, i),
			}
		}
	}
	for i := 1; i <= PumpUnits; i++ {
		md[fmt.Sprintf("CDWP%02d_rpm", i)] = Metadata{
			Description: fmt.Sprintf("Rotating speed of condenser water pump %02d", i),
		}
		md[fmt.Sprintf("CHWP%02d_rpm", i)] = Metadata{
			Description: fmt.Sprintf("Rotating speed of chilled water pump %02d", i),
		}
		md[fmt.Sprintf("CDWP%02d_ONOFF", i)] = Metadata{
			Description: fmt.Sprintf("Valve of condenser water pump %02d OPEN/CLOSE", i),
		}
		md[fmt.Sprintf("CHWP%02d_ONOFF", i)] = Metadata{
			Description: fmt.Sprintf("Valve of chilled water pump %02d OPEN/CLOSE", i),
		}
	}
	for i := 1; i <= ChillerUnits; i++ {
		md[fmt.Sprintf("CHI%02d", i)] = Metadata{
			Description: fmt.Sprintf("Chiller %02d ON/OFF", i),
		}
		for v := 1; v <= ValvesPerSide; v++ {
			md[fmt.Sprintf("CHI%02d_CW%d", i, v)] = Metadata{
				Description: fmt.Sprintf("Condenser water side valve %d of chiller %02d OPEN/CLOSE", v, i),
			}
			md[fmt.Sprintf("CHI%02d_CHW%d", i, v)] = Metadata{
				Description: fmt.Sprintf("Chilled water side valve %d of chiller %02d OPEN/CLOSE", v, i),
			}
		}
	}

	md["CWP_speedInput"] = Metadata{Description: "Average speed of all condenser water pumps"}
	md["Tchws_set_CHI"] = Metadata{Description: "Chilled water supply temperature set point of chiller (K)"}
	md["Tchws_set_HEX"] = Metadata{Description: "Chilled water supply temperature set point of heat exchanger (K)"}
	md["CWP_activatedNumber"] = Metadata{Description: "Number of activated condenser water pumps"}

	return md
}

func buildOutputMetadata() map[string]Metadata {
	md := make(map[string]Metadata, len(outputNames))

	for i := 1; i <= ChillerUnits; i++ {
		md[fmt.Sprintf("Pchi%d", i)] = Metadata{
			Description: fmt.Sprintf("Electric power of chiller %d (W)", i),
		}
	}
	for i := 1; i <= TowerUnits; i++ {
		for f := 1; f <= FansPerTower; f++ {
			md[fmt.Sprintf("Pfan_CT%d_%02d", i, f)] = Metadata{
				Description: fmt.Sprintf("Electric power of fan %02d of cooling tower %d (W)", f, i),
			}
		}
		md[fmt.Sprintf("Tcwr_CT%d", i)] = Metadata{
			Description: fmt.Sprintf("Condenser water return temperature of cooling tower %d (K)", i),
		}
		md[fmt.Sprintf("Tlvg_CT%d", i)] = Metadata{
			Description: fmt.Sprintf("Leaving water temperature of cooling tower %d (K)", i),
		}
	}
	for i := 1; i <= PumpUnits; i++ {
		md[fmt.Sprintf("H_CDWP%02d", i)] = Metadata{
			Description: fmt.Sprintf("Hydraulic head of condenser water pump %02d (m)", i),
		}
		md[fmt.Sprintf("H_CHWP%02d", i)] = Metadata{
			Description: fmt.Sprintf("Hydraulic head of chilled water pump %02d (m)", i),
		}
		md[fmt.Sprintf("eta_CDWP%02d", i)] = Metadata{
			Description: fmt.Sprintf("Efficiency of condenser water pump %02d", i),
		}
		md[fmt.Sprintf("eta_CHWP%02d", i)] = Metadata{
			Description: fmt.Sprintf("Efficiency of chilled water pump %02d", i),
		}
	}

	md["P_Chillers_sum"] = Metadata{Description: "Total electric power of chillers (W)"}
	md["P_CDWPs_sum"] = Metadata{Description: "Total electric power of condenser water pumps (W)"}
	md["P_CHWPs_sum"] = Metadata{Description: "Total electric power of chilled water pumps (W)"}
	md["P_CTfans_sum"] = Metadata{Description: "Total electric power of cooling tower fans (W)"}
	md["Tchw_supply"] = Metadata{Description: "Chilled water supply temperature (K)"}
	md["Tcw_supply"] = Metadata{Description: "Condenser water supply temperature (K)"}
	md["Tcw_returnPipe"] = Metadata{Description: "Condenser water return pipe temperature (K)"}
	md["VolumeFlowRate_cw"] = Metadata{Description: "Volume flow rate of condenser water (m3/s)"}

	return md
}

// ControlNames возвращает декларированные входы управления в стабильном
// порядке. Копия, чтобы вызывающая сторона не изменила реестр.
func ControlNames() []string {
	out := make([]string, len(controlNames))
	copy(out, controlNames)
	return out
}

// OutputNames возвращает декларированные выходы в стабильном порядке
func OutputNames() []string {
	out := make([]string, len(outputNames))
	copy(out, outputNames)
	return out
}

// IsControl проверяет, объявлен ли вход с таким именем
func IsControl(name string) bool {
	_, ok := controlSet[name]
	return ok
}

// IsOutput проверяет, объявлен ли выход с таким именем
func IsOutput(name string) bool {
	_, ok := outputSet[name]
	return ok
}

// ControlCount количество декларированных входов управления
func ControlCount() int {
	return len(controlNames)
}

// OutputCount количество декларированных выходов
func OutputCount() int {
	return len(outputNames)
}

// InputsMetadata возвращает описания входов управления
func InputsMetadata() map[string]Metadata {
	out := make(map[string]Metadata, len(controlMetadata))
	for k, v := range controlMetadata {
		out[k] = v
	}
	return out
}

// OutputsMetadata возвращает описания выходов
func OutputsMetadata() map[string]Metadata {
	out := make(map[string]Metadata, len(outputMetadata))
	for k, v := range outputMetadata {
		out[k] = v
	}
	return out
}

// DefaultControls возвращает кадр управления со значениями по умолчанию:
// всё оборудование выключено, уставки температур на номинале.
func DefaultControls() ControlFrame {
	frame := make(ControlFrame, len(controlNames))
	for _, name := range controlNames {
		frame[name] = 0
	}
	frame["Tchws_set_CHI"] = DefaultChilledSupplySetpoint
	frame["Tchws_set_HEX"] = DefaultHexSupplySetpoint
	return frame
}
