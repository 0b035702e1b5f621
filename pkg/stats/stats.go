// Package stats provides the performance series and summary statistics used
// by backtest reporting.
package stats

import (
	"math"
	"sync"
	"time"
)

// Summary holds the aggregate statistics of a value series.
type Summary struct {
	Mean     float64
	Std      float64
	Variance float64
	Count    int
}

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Variance returns the population variance.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	mean := Mean(data)
	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(data))
}

// StdDev returns the population standard deviation.
func StdDev(data []float64) float64 {
	return math.Sqrt(Variance(data))
}

// Summarize computes mean, variance and standard deviation in one pass over
// the series.
func Summarize(data []float64) Summary {
	n := len(data)
	if n == 0 {
		return Summary{}
	}

	sum, sumSq := 0.0, 0.0
	for _, v := range data {
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	variance := 0.0
	if n > 1 {
		variance = sumSq/float64(n) - mean*mean
		if variance < 0 {
			variance = 0
		}
	}

	return Summary{
		Mean:     mean,
		Std:      math.Sqrt(variance),
		Variance: variance,
		Count:    n,
	}
}

// MaxDrawdown returns the largest peak-to-trough decline of a cumulative
// value series. The result is non-negative.
func MaxDrawdown(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	peak := data[0]
	maxDD := 0.0
	for _, v := range data {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ProfitFactor returns gross profit divided by gross loss of a per-trade
// P&L series. A series without losses returns +Inf; an empty one returns 0.
func ProfitFactor(trades []float64) float64 {
	profit, loss := 0.0, 0.0
	for _, v := range trades {
		if v > 0 {
			profit += v
		} else {
			loss -= v
		}
	}
	if loss == 0 {
		if profit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return profit / loss
}

// TimeSeries is a bounded, thread-safe value series with timestamps. When
// the series exceeds its maximum length the oldest points are dropped.
type TimeSeries struct {
	mu         sync.RWMutex
	name       string
	values     []float64
	timestamps []time.Time
	maxLength  int
}

// NewTimeSeries creates a series keeping at most maxLength points. A
// non-positive maxLength means unbounded.
func NewTimeSeries(name string, maxLength int) *TimeSeries {
	return &TimeSeries{
		name:      name,
		maxLength: maxLength,
	}
}

// Name returns the series name.
func (ts *TimeSeries) Name() string {
	return ts.name
}

// Append adds a point to the series.
func (ts *TimeSeries) Append(value float64, t time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.values = append(ts.values, value)
	ts.timestamps = append(ts.timestamps, t)
	if ts.maxLength > 0 && len(ts.values) > ts.maxLength {
		ts.values = ts.values[1:]
		ts.timestamps = ts.timestamps[1:]
	}
}

// Len returns the number of points.
func (ts *TimeSeries) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.values)
}

// Last returns the most recent value; ok is false for an empty series.
func (ts *TimeSeries) Last() (float64, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if len(ts.values) == 0 {
		return 0, false
	}
	return ts.values[len(ts.values)-1], true
}

// Values returns a copy of the value slice.
func (ts *TimeSeries) Values() []float64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]float64, len(ts.values))
	copy(out, ts.values)
	return out
}

// Summary computes the aggregate statistics of the series.
func (ts *TimeSeries) Summary() Summary {
	return Summarize(ts.Values())
}

// MaxDrawdown computes the largest decline of the series.
func (ts *TimeSeries) MaxDrawdown() float64 {
	return MaxDrawdown(ts.Values())
}

// Clear drops all points.
func (ts *TimeSeries) Clear() {
	ts.mu.Lock()
	ts.values = ts.values[:0]
	ts.timestamps = ts.timestamps[:0]
	ts.mu.Unlock()
}
