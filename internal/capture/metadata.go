package capture

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"snapapi/internal/model"
)

// ShapeMetadata keeps the known numeric readings from a driver's raw metadata
// and drops everything else. Fractional values are rounded.
func ShapeMetadata(raw map[string]any) model.Metadata {
	var md model.Metadata
	if len(raw) == 0 {
		return md
	}
	md.Lux = lookup(raw, "Lux", "lux")
	md.ExposureTime = lookup(raw, "ExposureTime", "exposure_time")
	md.ColourTemperature = lookup(raw, "ColourTemperature", "colour_temperature")
	return md
}

func lookup(raw map[string]any, keys ...string) *int64 {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if n, ok := toInt64(v); ok {
				return &n
			}
		}
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case float32:
		return roundFloat(float64(x))
	case float64:
		return roundFloat(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return roundFloat(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return roundFloat(f)
	default:
		return 0, false
	}
}

func roundFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(f)), true
}
