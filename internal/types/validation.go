package types

import (
	"fmt"
	"regexp"
)

// Validation constraint constants.
const (
	MaxNodeIDLength = 64
	MinQueryHours   = 1
	MaxQueryHours   = 168
)

var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PollutantMetadata defines the canonical rules for a particulate channel.
type PollutantMetadata struct {
	ID          string     `json:"id"`
	Unit        string     `json:"unit"`
	Range       [2]float64 `json:"valid_range"`
	Description string     `json:"description"`
}

// StandardPollutants lists the channels a node reports. Ingestion clamps to
// the configured sensor maxima, which may be narrower than these ranges.
var StandardPollutants = map[string]PollutantMetadata{
	"pm1_0": {ID: "pm1_0", Unit: "μg/m³", Range: [2]float64{0, 1000}, Description: "Particulate matter up to 1.0 μm"},
	"pm2_5": {ID: "pm2_5", Unit: "μg/m³", Range: [2]float64{0, 1000}, Description: "Fine particulate matter up to 2.5 μm"},
	"pm10":  {ID: "pm10", Unit: "μg/m³", Range: [2]float64{0, 1000}, Description: "Coarse particulate matter up to 10 μm"},
}

// ValidateNodeID checks that a node identifier is safe to use as a storage
// key and route parameter.
func ValidateNodeID(nodeID string) error {
	if nodeID == "" {
		return NewAppError(ErrCodeValidationInvalidNode, "node_id is required", nil)
	}
	if len(nodeID) > MaxNodeIDLength {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidNode,
			fmt.Sprintf("node_id exceeds %d characters", MaxNodeIDLength), nil,
			map[string]any{"max_length": MaxNodeIDLength})
	}
	if !nodeIDPattern.MatchString(nodeID) {
		return NewAppError(ErrCodeValidationInvalidNode,
			"node_id may only contain letters, digits, '_' and '-'", nil)
	}
	return nil
}

// ValidateQueryHours checks that a lookback or horizon is within [1, 168].
func ValidateQueryHours(hours int) error {
	if hours < MinQueryHours || hours > MaxQueryHours {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidHours,
			fmt.Sprintf("hours must be between %d and %d", MinQueryHours, MaxQueryHours), nil,
			map[string]any{"min": MinQueryHours, "max": MaxQueryHours, "got": hours})
	}
	return nil
}
