package pkg

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrorsDistinct(t *testing.T) {
	all := []error{
		ErrAlreadyRunning, ErrNotRunning, ErrInvalidParameter, ErrDuplicateTarget,
		ErrUnknownTarget, ErrBusBusy, ErrTimeout, ErrNoIBIPayload, ErrMissingMDB,
		ErrUnsupportedReset, ErrPrematureEnd, ErrUnexpectedData, ErrNACK,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v matches %v", a, b)
			}
		}
	}
}

func TestProtocolViolationError(t *testing.T) {
	var err error = &ProtocolViolationError{Data: 0xA5, Expected: true, Received: false}
	if !strings.Contains(err.Error(), "0xA5") {
		t.Errorf("Error() = %q, want data byte", err.Error())
	}

	wrapped := fmt.Errorf("target: %w", err)
	var pv *ProtocolViolationError
	if !errors.As(wrapped, &pv) {
		t.Fatal("errors.As failed on wrapped ProtocolViolationError")
	}
	if pv.Data != 0xA5 {
		t.Errorf("Data = 0x%02X, want 0xA5", pv.Data)
	}
}

func TestResetQueryError(t *testing.T) {
	err := &ResetQueryError{Address: 0x20, Action: 0x04, Reason: "no time query"}
	if !errors.Is(err, ErrUnsupportedReset) {
		t.Error("ResetQueryError does not unwrap to ErrUnsupportedReset")
	}
	if !strings.Contains(err.Error(), "0x20") {
		t.Errorf("Error() = %q, want address", err.Error())
	}
}

func TestRecoveryError(t *testing.T) {
	tests := []struct {
		stage string
		err   error
	}{
		{"length", ErrPrematureEnd},
		{"pec", ErrUnexpectedData},
		{"header", ErrNACK},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			err := &RecoveryError{Stage: tt.stage, Err: tt.err}
			if !errors.Is(err, tt.err) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.err)
			}
			if !strings.Contains(err.Error(), tt.stage) {
				t.Errorf("Error() = %q, want stage", err.Error())
			}
		})
	}
}
