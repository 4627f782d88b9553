package access

import (
	"encoding/json"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Succeeded, "succeeded"},
		{Failed, "failed"},
		{ProtocolFailed, "protocol_failed"},
		{TransmissionFailed, "transmission_failed"},
		{NoLongerExists, "no_longer_exists"},
		{NotSupported, "not_supported"},
		{Status(42), "status(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	r := Fail(TransmissionFailed, "bus error %d", 7)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"status":"transmission_failed","message":"bus error 7"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != r {
		t.Errorf("Unmarshal() = %+v, want %+v", back, r)
	}
}

func TestStatusUnmarshalUnknown(t *testing.T) {
	var s Status
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("UnmarshalText() expected error for unknown status")
	}
}

func TestResultHelpers(t *testing.T) {
	if !OK.Succeeded() {
		t.Error("OK.Succeeded() = false")
	}
	if OK.String() != "succeeded" {
		t.Errorf("OK.String() = %q", OK.String())
	}

	u := Unsupported("contrast")
	if u.Status != NotSupported || u.Message != "contrast is not supported" {
		t.Errorf("Unsupported() = %+v", u)
	}

	tests := []struct {
		status Status
		want   bool
	}{
		{Succeeded, false},
		{Failed, false},
		{ProtocolFailed, false},
		{TransmissionFailed, true},
		{NoLongerExists, true},
		{NotSupported, false},
	}
	for _, tt := range tests {
		if got := (Result{Status: tt.status}).WarrantsRescan(); got != tt.want {
			t.Errorf("WarrantsRescan(%v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
