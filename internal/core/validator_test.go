package core

import (
	"errors"
	"testing"

	"airwatch/internal/types"
)

type testTokenRequest struct {
	Token  string `json:"token" validate:"required,max=16"`
	NodeID string `json:"node_id" validate:"omitempty,nodeid"`
}

type testBatch struct {
	Readings []testReading `json:"readings" validate:"dive"`
}

type testReading struct {
	NodeID string  `json:"node_id" validate:"required,nodeid"`
	PM25   float64 `json:"pm2_5" validate:"gte=0"`
}

func TestValidateStruct_Success(t *testing.T) {
	v := NewValidator(testLogger())
	if err := v.ValidateStruct(testTokenRequest{Token: "abc", NodeID: "node_1"}, types.ErrCodeValidationPushToken); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateStruct_FailureDetailsUseJSONNames(t *testing.T) {
	v := NewValidator(nil)
	err := v.ValidateStruct(testTokenRequest{NodeID: "bad id!"}, types.ErrCodeValidationPushToken)

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeValidationPushToken {
		t.Errorf("unexpected code %q", appErr.Code)
	}
	if appErr.Details["token"] != "required" {
		t.Errorf("expected token=required, got %v", appErr.Details)
	}
	if appErr.Details["node_id"] != "nodeid" {
		t.Errorf("expected node_id=nodeid, got %v", appErr.Details)
	}
}

func TestValidateStruct_ParamInRule(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(testTokenRequest{Token: "0123456789abcdefXYZ"}, types.ErrCodeValidationPushToken)

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Details["token"] != "max=16" {
		t.Errorf("expected max=16, got %v", appErr.Details)
	}
}

func TestValidateStruct_NestedPath(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(testBatch{Readings: []testReading{
		{NodeID: "n1", PM25: 10},
		{NodeID: "", PM25: -1},
	}}, types.ErrCodeValidationReading)

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Details["readings[1].node_id"] != "required" {
		t.Errorf("unexpected details %v", appErr.Details)
	}
	if appErr.Details["readings[1].pm2_5"] != "gte=0" {
		t.Errorf("unexpected details %v", appErr.Details)
	}
}

func TestValidateStruct_NonStructIsInternal(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct("not a struct", types.ErrCodeValidationReading)

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected internal error, got %v", err)
	}
}
