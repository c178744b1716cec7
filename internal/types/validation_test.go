package types

import (
	"strings"
	"testing"
)

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  string
		wantErr bool
	}{
		{"simple", "node-01", false},
		{"underscore", "hcm_district_1", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxNodeIDLength+1), true},
		{"max length", strings.Repeat("a", MaxNodeIDLength), false},
		{"quote", `n1"; DROP TABLE readings`, true},
		{"space", "node 1", true},
		{"slash", "node/1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeID(tt.nodeID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateNodeID(%q) error = %v, wantErr %v", tt.nodeID, err, tt.wantErr)
			}
			if err != nil && !HasCode(err, ErrCodeValidationInvalidNode) {
				t.Errorf("expected %s, got %v", ErrCodeValidationInvalidNode, err)
			}
		})
	}
}

func TestValidateQueryHours(t *testing.T) {
	for _, h := range []int{1, 24, 168} {
		if err := ValidateQueryHours(h); err != nil {
			t.Errorf("ValidateQueryHours(%d) = %v, want nil", h, err)
		}
	}
	for _, h := range []int{0, -1, 169} {
		err := ValidateQueryHours(h)
		if !HasCode(err, ErrCodeValidationInvalidHours) {
			t.Errorf("ValidateQueryHours(%d) = %v, want %s", h, err, ErrCodeValidationInvalidHours)
		}
	}
}
