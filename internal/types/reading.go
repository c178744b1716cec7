package types

import "time"

// Reading is a single particulate-matter measurement reported by a node.
// Concentrations are in μg/m³ and never negative. AQI is the index the
// sensor reported, if any; evaluation always recomputes it from PM25.
type Reading struct {
	NodeID     string    `json:"node_id"`
	RecordedAt time.Time `json:"recorded_at"`
	PM1        float64   `json:"pm1_0"`
	PM25       float64   `json:"pm2_5"`
	PM10       float64   `json:"pm10"`
	AQI        *int      `json:"aqi,omitempty"`
}

// ReadingBucket is a time-bucketed mean of readings for one node.
type ReadingBucket struct {
	NodeID string    `json:"node_id,omitempty"`
	Start  time.Time `json:"time"`
	PM1    float64   `json:"pm1_0"`
	PM25   float64   `json:"pm2_5"`
	PM10   float64   `json:"pm10"`
	AQI    float64   `json:"aqi"`
}

// PM25Point is a raw PM2.5 sample with its timestamp.
type PM25Point struct {
	RecordedAt time.Time `json:"time"`
	PM25       float64   `json:"pm2_5"`
}
