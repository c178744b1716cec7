package aqi

// Tier is a named severity band of the index.
type Tier string

const (
	TierGood      Tier = "good"
	TierModerate  Tier = "moderate"
	TierPoor      Tier = "poor"
	TierBad       Tier = "bad"
	TierHazardous Tier = "hazardous"
)

// AllTiers lists the tiers from least to most severe.
var AllTiers = []Tier{TierGood, TierModerate, TierPoor, TierBad, TierHazardous}

// Classify maps an index value to its tier. Boundaries are inclusive upper
// bounds: 50 is good, 51 is moderate.
func Classify(index int) Tier {
	switch {
	case index <= 50:
		return TierGood
	case index <= 100:
		return TierModerate
	case index <= 150:
		return TierPoor
	case index <= 200:
		return TierBad
	default:
		return TierHazardous
	}
}

// Severity returns the tier's rank, 0 for good up to 4 for hazardous.
// Unknown tiers rank as moderate.
func (t Tier) Severity() int {
	for i, known := range AllTiers {
		if known == t {
			return i
		}
	}
	return 1
}

// AlertEligible reports whether a reading in this tier may trigger a push alert.
func (t Tier) AlertEligible() bool {
	switch t {
	case TierPoor, TierBad, TierHazardous:
		return true
	default:
		return false
	}
}

// TierInfo is the presentation data for a tier.
type TierInfo struct {
	Tier     Tier     `json:"level"`
	Label    string   `json:"level_name"`
	Color    string   `json:"color"`
	Emoji    string   `json:"emoji"`
	Guidance []string `json:"suggestions"`
}

var tierInfo = map[Tier]TierInfo{
	TierGood: {
		Tier: TierGood, Label: "Good", Color: "#00E400", Emoji: "😊",
		Guidance: []string{
			"Normal outdoor activities are fine",
			"Open windows for ventilation",
			"Suitable for all sports and exercise",
		},
	},
	TierModerate: {
		Tier: TierModerate, Label: "Moderate", Color: "#FFFF00", Emoji: "😐",
		Guidance: []string{
			"Sensitive groups should limit prolonged outdoor activity",
			"Light outdoor exercise is fine",
			"Monitor your health",
		},
	},
	TierPoor: {
		Tier: TierPoor, Label: "Poor", Color: "#FF7E00", Emoji: "😷",
		Guidance: []string{
			"Wear a mask when going outdoors",
			"Limit outdoor exercise",
			"Sensitive groups should stay indoors",
		},
	},
	TierBad: {
		Tier: TierBad, Label: "Bad", Color: "#FF0000", Emoji: "🚨",
		Guidance: []string{
			"Limit going outside and close windows",
			"Turn on an air purifier if available",
			"Wear an N95 mask when going outdoors",
		},
	},
	TierHazardous: {
		Tier: TierHazardous, Label: "Hazardous", Color: "#8F3F97", Emoji: "☠️",
		Guidance: []string{
			"Stay indoors with an air purifier running",
			"Avoid all outdoor activities",
			"Keep doors closed and use air filtration",
		},
	},
}

// Info returns the presentation data for t. Unknown tiers fall back to
// moderate. The returned Guidance slice is a copy.
func Info(t Tier) TierInfo {
	info, ok := tierInfo[t]
	if !ok {
		info = tierInfo[TierModerate]
	}
	info.Guidance = append([]string(nil), info.Guidance...)
	return info
}

// Guidance returns the three health recommendations for t.
func Guidance(t Tier) []string {
	return Info(t).Guidance
}
