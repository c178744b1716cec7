package analytics

import "time"

const (
	// HistoryCapacity is the number of hourly samples the forecaster keeps.
	HistoryCapacity = 168
	// Lookback is the window the base level is averaged over.
	Lookback = 24
	// TrendWindow is the history length required to estimate a trend.
	TrendWindow = 2 * Lookback

	minPrediction = 5.0
	maxPrediction = 300.0
)

// Forecaster projects hourly PM2.5 from the mean of the last day, a linear
// trend against the day before, and a time-of-day multiplier.
type Forecaster struct {
	history []float64
}

// Fit retains the most recent HistoryCapacity samples, replacing prior history.
func (f *Forecaster) Fit(samples []float64) {
	if len(samples) > HistoryCapacity {
		samples = samples[len(samples)-HistoryCapacity:]
	}
	f.history = append(make([]float64, 0, len(samples)), samples...)
}

// Len returns the number of retained samples.
func (f *Forecaster) Len() int {
	return len(f.history)
}

// Clone returns an independent copy safe to hand to readers.
func (f *Forecaster) Clone() *Forecaster {
	return &Forecaster{history: append([]float64(nil), f.history...)}
}

// Predict returns hours predictions. Step h is taken at clock hour
// (start.Hour()+h) mod 24 in start's location. It returns nil when fewer
// than Lookback samples are retained.
func (f *Forecaster) Predict(start time.Time, hours int) []float64 {
	n := len(f.history)
	if n < Lookback || hours <= 0 {
		return nil
	}

	base := Mean(f.history[n-Lookback:])
	var trend float64
	if n >= TrendWindow {
		trend = (base - Mean(f.history[n-TrendWindow:n-Lookback])) / Lookback
	}

	out := make([]float64, hours)
	startHour := start.Hour()
	for h := 0; h < hours; h++ {
		v := (base + trend*float64(h)) * DiurnalMultiplier((startHour+h)%24)
		out[h] = Round1(clamp(v, minPrediction, maxPrediction))
	}
	return out
}

// DiurnalMultiplier returns the time-of-day factor for a clock hour: rush
// hours 07-09 and 17-19 are raised, night hours 00-05 lowered.
func DiurnalMultiplier(hour int) float64 {
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return 1.15
	case hour >= 0 && hour <= 5:
		return 0.85
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
