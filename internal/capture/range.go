package capture

// DepthRangeMode is a named depth range preset.
type DepthRangeMode string

// Depth range presets. RangeDefault applies no preset and leaves the range
// to the individual depth options.
const (
	RangeVeryShort    DepthRangeMode = "VeryShort"
	RangeShort        DepthRangeMode = "Short"
	RangeMedium       DepthRangeMode = "Medium"
	RangeLong         DepthRangeMode = "Long"
	RangeVeryLong     DepthRangeMode = "VeryLong"
	RangeHybrid       DepthRangeMode = "Hybrid"
	RangeBodyScanning DepthRangeMode = "BodyScanning"
	RangeDefault      DepthRangeMode = "Default"
)

// RangeMM is an estimated working range in millimetres.
type RangeMM struct {
	Min float32 `json:"min_mm"`
	Max float32 `json:"max_mm"`
}

// rangePresets holds the estimated range of each preset. BodyScanning is
// not documented by the SDK and shares the Short envelope.
var rangePresets = map[DepthRangeMode]RangeMM{
	RangeVeryShort:    {Min: 350, Max: 920},
	RangeShort:        {Min: 410, Max: 1360},
	RangeMedium:       {Min: 520, Max: 5230},
	RangeLong:         {Min: 580, Max: 8000},
	RangeVeryLong:     {Min: 580, Max: 10000},
	RangeHybrid:       {Min: 350, Max: 10000},
	RangeBodyScanning: {Min: 410, Max: 1360},
}

// RangePresets lists the presets in ascending order of declaration.
var RangePresets = []DepthRangeMode{
	RangeVeryShort,
	RangeShort,
	RangeMedium,
	RangeLong,
	RangeVeryLong,
	RangeHybrid,
	RangeBodyScanning,
}

// RangeToMM returns the estimated minimum and maximum range of a preset in
// millimetres. ok is false for RangeDefault and unknown modes.
func RangeToMM(mode DepthRangeMode) (minMM, maxMM float32, ok bool) {
	r, ok := rangePresets[mode]
	return r.Min, r.Max, ok
}

// Known reports whether the mode is a preset or RangeDefault.
func (m DepthRangeMode) Known() bool {
	if m == RangeDefault {
		return true
	}
	_, ok := rangePresets[m]
	return ok
}
