package airquality

import (
	"time"

	"airwatch/internal/alerting"
	"airwatch/internal/analytics"
	"airwatch/internal/aqi"
)

// Messages attached to the anomaly flag of a status.
const (
	AnomalyMessage = "Anomalous reading"
	NormalMessage  = "Normal"
)

// ForecastModel names the forecaster in responses.
const ForecastModel = "trend-diurnal"

// DetectorType names the anomaly detector in responses.
const DetectorType = "z-score"

// Status is the current air quality at a node.
type Status struct {
	NodeID     string                           `json:"node_id"`
	Timestamp  time.Time                        `json:"timestamp"`
	RecordedAt time.Time                        `json:"recorded_at"`
	PM1        float64                          `json:"pm1_0"`
	PM25       float64                          `json:"pm2_5"`
	PM10       float64                          `json:"pm10"`
	AQI        int                              `json:"aqi"`
	Level      aqi.Tier                         `json:"level"`
	LevelInfo  aqi.TierInfo                     `json:"level_info"`
	Anomaly    AnomalyFlag                      `json:"anomaly"`
	Alerts     []alerting.CooldownEntry         `json:"alerts"`
	Standards  map[string]aqi.PollutantStandard `json:"standards"`
}

// AnomalyFlag is the anomaly verdict for one reading.
type AnomalyFlag struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"score"`
	Message   string  `json:"message"`
}

// ForecastPoint is one hourly prediction.
type ForecastPoint struct {
	Time      time.Time `json:"time"`
	TimeLabel string    `json:"time_label"`
	Hour      int       `json:"hour"`
	PM25      float64   `json:"pm2_5"`
	AQI       int       `json:"aqi"`
	Level     aqi.Tier  `json:"level"`
	LevelName string    `json:"level_name"`
	Color     string    `json:"color"`
}

// ForecastSummary aggregates the predicted PM2.5 values.
type ForecastSummary struct {
	AvgPM25 float64 `json:"avg_pm2_5"`
	MaxPM25 float64 `json:"max_pm2_5"`
	MinPM25 float64 `json:"min_pm2_5"`
}

// Forecast is an hourly PM2.5 prediction for a node.
type Forecast struct {
	NodeID      string          `json:"node_id"`
	Model       string          `json:"model"`
	Hours       int             `json:"forecast_hours"`
	GeneratedAt time.Time       `json:"generated_at"`
	Points      []ForecastPoint `json:"predictions"`
	Summary     ForecastSummary `json:"summary"`
}

// AnomalyPoint is a raw sample flagged as anomalous.
type AnomalyPoint struct {
	Time  time.Time `json:"time"`
	PM25  float64   `json:"pm2_5"`
	Score float64   `json:"anomaly_score"`
}

// DetectorInfo describes the detector used for a report.
type DetectorInfo struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Fitted    bool    `json:"fitted"`
}

// AnomalyReport lists anomalous samples in a window.
type AnomalyReport struct {
	NodeID       string         `json:"node_id"`
	Hours        int            `json:"hours"`
	TotalPoints  int            `json:"total_points"`
	AnomalyCount int            `json:"anomaly_count"`
	AnomalyRate  float64        `json:"anomaly_rate"`
	Anomalies    []AnomalyPoint `json:"anomalies"`
	Detector     DetectorInfo   `json:"detector"`
}

// HistoryPoint is a 5-minute bucket of a node's readings.
type HistoryPoint struct {
	Time      time.Time `json:"time"`
	TimeLabel string    `json:"time_label"`
	PM1       float64   `json:"pm1_0"`
	PM25      float64   `json:"pm2_5"`
	PM10      float64   `json:"pm10"`
	AQI       int       `json:"aqi"`
}

// HistoryStats summarizes PM2.5 over a history window.
type HistoryStats struct {
	MinPM25 float64 `json:"pm2_5_min"`
	MaxPM25 float64 `json:"pm2_5_max"`
	AvgPM25 float64 `json:"pm2_5_avg"`
}

// History is a node's bucketed readings over a window.
type History struct {
	NodeID     string         `json:"node_id"`
	Hours      int            `json:"hours"`
	Data       []HistoryPoint `json:"data"`
	Statistics *HistoryStats  `json:"statistics,omitempty"`
}

// ComparePoint is a 30-minute bucket in a cross-node comparison.
type ComparePoint struct {
	Time      time.Time `json:"time"`
	TimeLabel string    `json:"time_label"`
	PM25      float64   `json:"pm2_5"`
	PM10      float64   `json:"pm10"`
	AQI       int       `json:"aqi"`
}

// Comparison holds bucketed readings for every node with data in a window.
type Comparison struct {
	Hours int                       `json:"hours"`
	Nodes map[string][]ComparePoint `json:"comparison"`
}

// StandardsInfo is the static reference data served to clients.
type StandardsInfo struct {
	Source          string                           `json:"source"`
	Standards       map[string]aqi.PollutantStandard `json:"standards"`
	AlertThresholds map[string]map[aqi.Tier]float64  `json:"alert_thresholds"`
	Breakpoints     aqi.Table                        `json:"breakpoints"`
}

// NodeInfo describes an active node and its last evaluation, if any.
type NodeInfo struct {
	NodeID      string     `json:"node_id"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
	AQI         *int       `json:"aqi,omitempty"`
	Level       aqi.Tier   `json:"level,omitempty"`
	Anomalous   bool       `json:"anomalous"`
}

// models is the detector and forecaster a query runs against.
type models struct {
	detector   analytics.AnomalyDetector
	forecaster *analytics.Forecaster
}
