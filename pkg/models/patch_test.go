package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

type patchRequest struct {
	VehicleTypeID Patch[int64]           `json:"vehicle_type_id"`
	Confidence    Patch[decimal.Decimal] `json:"confidence"`
}

func TestPatch_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantPresent    bool
		wantValue      *int64
		wantConfidence string
	}{
		{name: "absent", body: `{}`},
		{name: "explicit null", body: `{"vehicle_type_id": null}`, wantPresent: true},
		{name: "set", body: `{"vehicle_type_id": 3, "confidence": 0.95}`, wantPresent: true, wantValue: ptrInt64(3), wantConfidence: "0.95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req patchRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if req.VehicleTypeID.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v", req.VehicleTypeID.Present, tt.wantPresent)
			}
			switch {
			case tt.wantValue == nil && req.VehicleTypeID.Value != nil:
				t.Errorf("Value = %v, want nil", *req.VehicleTypeID.Value)
			case tt.wantValue != nil && (req.VehicleTypeID.Value == nil || *req.VehicleTypeID.Value != *tt.wantValue):
				t.Errorf("Value = %v, want %v", req.VehicleTypeID.Value, *tt.wantValue)
			}
			if tt.wantConfidence != "" {
				if req.Confidence.Value == nil || req.Confidence.Value.String() != tt.wantConfidence {
					t.Errorf("Confidence = %v, want %s", req.Confidence.Value, tt.wantConfidence)
				}
			}
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	prior := ptrInt64(7)

	if got := (Patch[int64]{}).Apply(prior); got != prior {
		t.Errorf("absent patch should keep prior, got %v", got)
	}
	if got := Null[int64]().Apply(prior); got != nil {
		t.Errorf("null patch should clear, got %v", *got)
	}
	if got := Set[int64](9).Apply(prior); got == nil || *got != 9 {
		t.Errorf("set patch should replace, got %v", got)
	}
	if got := PatchFromPtr[int64](nil).Apply(prior); got != nil {
		t.Errorf("PatchFromPtr(nil) should clear, got %v", *got)
	}
}

func ptrInt64(v int64) *int64 { return &v }
