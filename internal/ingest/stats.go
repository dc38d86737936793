package ingest

import (
	"sort"
	"time"

	"growrack/internal/models"
)

// FieldStats summarizes one sensor field over a window.
type FieldStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// WindowStats summarizes all four sensor fields over a window. Field
// pointers are nil when the window held no samples.
type WindowStats struct {
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Samples     int         `json:"samples"`
	Temperature *FieldStats `json:"temperature"`
	Humidity    *FieldStats `json:"humidity"`
	Moisture    *FieldStats `json:"moisture"`
	Light       *FieldStats `json:"light"`
}

// ComputeFieldStats reduces a value sequence to its summary. An empty
// sequence yields nil rather than zeroed statistics.
func ComputeFieldStats(values []float64) *FieldStats {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return &FieldStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    sum / float64(n),
		Median: median,
	}
}

// BuildWindowStats summarizes a set of readings already scoped to
// [from, to].
func BuildWindowStats(readings []models.Reading, from, to time.Time) WindowStats {
	stats := WindowStats{From: from, To: to, Samples: len(readings)}
	if len(readings) == 0 {
		return stats
	}

	temperature := make([]float64, 0, len(readings))
	humidity := make([]float64, 0, len(readings))
	moisture := make([]float64, 0, len(readings))
	light := make([]float64, 0, len(readings))
	for _, r := range readings {
		temperature = append(temperature, r.Temperature)
		humidity = append(humidity, r.Humidity)
		moisture = append(moisture, r.Moisture)
		light = append(light, r.Light)
	}

	stats.Temperature = ComputeFieldStats(temperature)
	stats.Humidity = ComputeFieldStats(humidity)
	stats.Moisture = ComputeFieldStats(moisture)
	stats.Light = ComputeFieldStats(light)
	return stats
}
