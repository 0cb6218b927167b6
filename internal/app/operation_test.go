package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	op := NewOperation("ListDonations", started)

	if op.Name != "ListDonations" {
		t.Errorf("Name = %q, want %q", op.Name, "ListDonations")
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want %q", op.Status, "success")
	}
	if len(op.ID) != 8 {
		t.Errorf("ID = %q, want 8 characters", op.ID)
	}
	if !op.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", op.StartedAt, started)
	}
	if op.Failed() {
		t.Error("Failed() = true for a new operation")
	}
}

func TestOperation_Fail(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	tests := []struct {
		name       string
		errs       []error
		wantFailed bool
		wantErr    error
	}{
		{name: "nil error ignored", errs: []error{nil}, wantFailed: false},
		{name: "single error", errs: []error{first}, wantFailed: true, wantErr: first},
		{name: "first error wins", errs: []error{first, second}, wantFailed: true, wantErr: first},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Vote", time.Time{})
			for _, err := range tt.errs {
				op.Fail(err)
			}
			if got := op.Failed(); got != tt.wantFailed {
				t.Errorf("Failed() = %v, want %v", got, tt.wantFailed)
			}
			if op.Err != tt.wantErr {
				t.Errorf("Err = %v, want %v", op.Err, tt.wantErr)
			}
			if tt.wantFailed && op.Status != "error" {
				t.Errorf("Status = %q, want %q", op.Status, "error")
			}
		})
	}
}
