package aqi

// StandardsSource names the regulation the limits are taken from.
const StandardsSource = "QCVN 05:2023/BTNMT"

// PollutantStandard is the reference limit set for one pollutant. Limits are
// upper bounds per tier in the pollutant's unit.
type PollutantStandard struct {
	Source      string           `json:"source"`
	Unit        string           `json:"unit"`
	Limits      map[Tier]float64 `json:"limits"`
	Description string           `json:"description"`
}

// Standards returns the particulate reference limits keyed by pollutant.
// Each call returns a fresh copy.
func Standards() map[string]PollutantStandard {
	return map[string]PollutantStandard{
		"pm2_5": {
			Source:      "QCVN",
			Unit:        "μg/m³",
			Limits:      map[Tier]float64{TierGood: 25, TierModerate: 50, TierPoor: 80, TierBad: 100},
			Description: "QCVN 05:2023 | annual mean: 25 | 24h mean: 50",
		},
		"pm10": {
			Source:      "QCVN",
			Unit:        "μg/m³",
			Limits:      map[Tier]float64{TierGood: 50, TierModerate: 100, TierPoor: 150, TierBad: 200},
			Description: "QCVN 05:2023 | annual mean: 50 | 24h mean: 100",
		},
		"pm1_0": {
			Source:      "REF",
			Unit:        "μg/m³",
			Limits:      map[Tier]float64{TierGood: 15, TierModerate: 35, TierPoor: 55, TierBad: 75},
			Description: "Reference only (~60% of PM2.5)",
		},
	}
}

// AlertThresholds returns the lower bound of each tier per analyte. Gas rows
// are reference data only; the evaluation cycle alerts on PM2.5.
func AlertThresholds() map[string]map[Tier]float64 {
	return map[string]map[Tier]float64{
		"pm2_5":   {TierModerate: 25, TierPoor: 50, TierBad: 80, TierHazardous: 100},
		"pm10":    {TierModerate: 50, TierPoor: 100, TierBad: 150, TierHazardous: 200},
		"co2_ppm": {TierModerate: 800, TierPoor: 1000, TierBad: 1500, TierHazardous: 2000},
		"co_ppm":  {TierPoor: 9, TierBad: 15, TierHazardous: 26},
	}
}
