package analysis

import (
	"math"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	// Population std (N denominator)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}

// -----------------------------------------------------------------------------

// MovingAverage computes a trailing simple moving average. The first
// window-1 points average whatever history exists so the overlay spans
// the full chart without NaN gaps.
func MovingAverage(data []float64, window int) []float64 {
	if window <= 1 || len(data) == 0 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	out := make([]float64, len(data))
	sum := 0.0
	for i, v := range data {
		sum += v
		if i >= window {
			sum -= data[i-window]
			out[i] = sum / float64(window)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// SeriesStats summarizes a price series for the dashboard side panel.
func SeriesStats(data []float64) models.MSeriesStats {
	if len(data) == 0 {
		return models.MSeriesStats{}
	}

	mean, std := CalculateMeanStd(data)

	minV, maxV := data[0], data[0]
	for _, v := range data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	return models.MSeriesStats{
		Mean:          mean,
		Std:           std,
		ChangePercent: CalculateChangePercent(data[len(data)-1], data[0]),
		Min:           minV,
		Max:           maxV,
		Points:        len(data),
	}
}
