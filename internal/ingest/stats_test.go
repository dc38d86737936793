package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growrack/internal/models"
)

func TestComputeFieldStats(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   *FieldStats
	}{
		{
			name:   "empty window yields nil",
			values: nil,
			want:   nil,
		},
		{
			name:   "single value",
			values: []float64{42},
			want:   &FieldStats{Count: 1, Min: 42, Max: 42, Avg: 42, Median: 42},
		},
		{
			name:   "odd count takes middle",
			values: []float64{30, 10, 20},
			want:   &FieldStats{Count: 3, Min: 10, Max: 30, Avg: 20, Median: 20},
		},
		{
			name:   "even count takes midpoint mean",
			values: []float64{40, 10, 20, 30},
			want:   &FieldStats{Count: 4, Min: 10, Max: 40, Avg: 25, Median: 25},
		},
		{
			name:   "unsorted input",
			values: []float64{5, 1, 4, 2, 3},
			want:   &FieldStats{Count: 5, Min: 1, Max: 5, Avg: 3, Median: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFieldStats(tt.values)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.InDelta(t, tt.want.Min, got.Min, 0.0001)
			assert.InDelta(t, tt.want.Max, got.Max, 0.0001)
			assert.InDelta(t, tt.want.Avg, got.Avg, 0.0001)
			assert.InDelta(t, tt.want.Median, got.Median, 0.0001)
		})
	}
}

func TestComputeFieldStatsDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_ = ComputeFieldStats(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestBuildWindowStats(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	readings := []models.Reading{
		{Temperature: 20, Humidity: 50, Moisture: 30, Light: 100},
		{Temperature: 22, Humidity: 52, Moisture: 34, Light: 300},
		{Temperature: 24, Humidity: 54, Moisture: 38, Light: 200},
	}

	stats := BuildWindowStats(readings, from, to)
	assert.Equal(t, 3, stats.Samples)
	require.NotNil(t, stats.Temperature)
	assert.InDelta(t, 22, stats.Temperature.Avg, 0.0001)
	assert.InDelta(t, 22, stats.Temperature.Median, 0.0001)
	require.NotNil(t, stats.Light)
	assert.InDelta(t, 200, stats.Light.Median, 0.0001)
	assert.InDelta(t, 100, stats.Light.Min, 0.0001)
	assert.InDelta(t, 300, stats.Light.Max, 0.0001)
}

func TestBuildWindowStatsEmpty(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	stats := BuildWindowStats(nil, from, from.Add(time.Hour))

	assert.Zero(t, stats.Samples)
	assert.Nil(t, stats.Temperature)
	assert.Nil(t, stats.Humidity)
	assert.Nil(t, stats.Moisture)
	assert.Nil(t, stats.Light)
}
