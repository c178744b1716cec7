// Package analytics holds the closed-form statistical models fitted per node:
// a z-score anomaly detector and a trend plus time-of-day forecaster.
//
// Both models are plain values. Fit mutates the receiver and is not safe for
// concurrent use; callers serialize access per node and hand copies to readers.
package analytics

import (
	"errors"
	"math"
	"strconv"
)

const (
	// DefaultZThreshold is the z-score above which a sample is anomalous.
	DefaultZThreshold = 2.5
	// MinFitSamples is the smallest sample set Fit accepts.
	MinFitSamples = 11
)

// ErrInsufficientData is returned when a model lacks the history to answer.
var ErrInsufficientData = errors.New("insufficient data")

// AnomalyDetector flags samples whose distance from the fitted mean exceeds
// Threshold standard deviations. The zero value is unfitted and flags nothing.
type AnomalyDetector struct {
	mean      float64
	stddev    float64
	threshold float64
	fitted    bool
}

// NewAnomalyDetector returns an unfitted detector using DefaultZThreshold.
func NewAnomalyDetector() AnomalyDetector {
	return AnomalyDetector{threshold: DefaultZThreshold}
}

// AnomalyResult is the outcome of checking one value.
type AnomalyResult struct {
	Value     float64 `json:"value"`
	Anomalous bool    `json:"is_anomaly"`
	Score     float64 `json:"anomaly_score"`
}

// DetectorStats is the fitted state exposed for reporting.
type DetectorStats struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std"`
	Threshold float64 `json:"threshold"`
	Fitted    bool    `json:"fitted"`
}

// Fit estimates mean and population standard deviation from samples. Fewer
// than MinFitSamples leaves the prior state untouched. A zero deviation is
// replaced by 1 so a flat history still yields finite scores.
func (d *AnomalyDetector) Fit(samples []float64) {
	if len(samples) < MinFitSamples {
		return
	}
	if d.threshold == 0 {
		d.threshold = DefaultZThreshold
	}
	mean := Mean(samples)
	var sq float64
	for _, v := range samples {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(samples)))
	if std == 0 {
		std = 1
	}
	d.mean = mean
	d.stddev = std
	d.fitted = true
}

// Detect reports whether v is anomalous and its z-score rounded to two
// decimals. The comparison uses the unrounded score. An unfitted detector
// returns (false, 0).
func (d AnomalyDetector) Detect(v float64) (bool, float64) {
	if d.stddev == 0 {
		return false, 0
	}
	z := math.Abs(v-d.mean) / d.stddev
	return z > d.threshold, roundTo(z, 2)
}

// DetectBatch applies Detect to each value with the current fitted state.
func (d AnomalyDetector) DetectBatch(values []float64) []AnomalyResult {
	out := make([]AnomalyResult, len(values))
	for i, v := range values {
		anomalous, score := d.Detect(v)
		out[i] = AnomalyResult{Value: v, Anomalous: anomalous, Score: score}
	}
	return out
}

// Fitted reports whether Fit has accepted a sample set.
func (d AnomalyDetector) Fitted() bool {
	return d.fitted
}

// Stats returns the fitted mean, deviation and threshold.
func (d AnomalyDetector) Stats() DetectorStats {
	th := d.threshold
	if th == 0 {
		th = DefaultZThreshold
	}
	return DetectorStats{Mean: d.mean, StdDev: d.stddev, Threshold: th, Fitted: d.fitted}
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// roundTo rounds the exact value of v to places decimals, sending ties to the
// even digit.
func roundTo(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Round1 rounds v to one decimal place, ties to even.
func Round1(v float64) float64 {
	return roundTo(v, 1)
}
