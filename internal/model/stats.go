package model

// Ratio returns part/total, or 0 when total is 0.
func Ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// MovingAverage returns the trailing moving average of values over window
// points. Positions before the first full window are zero and marked false
// in the returned mask.
func MovingAverage(values []float64, window int) ([]float64, []bool) {
	avg := make([]float64, len(values))
	ok := make([]bool, len(values))
	if window <= 0 {
		return avg, ok
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i+1 >= window {
			avg[i] = sum / float64(window)
			ok[i] = true
		}
	}
	return avg, ok
}
