package fsm

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"no transition", NewNoTransitionError("idle", "go"), `no transition from "idle" on "go"`},
		{"guard", NewGuardRejectedError("a", "b", "go", "ready"), `a -> b on "go" refused by guard ready`},
		{"guard without name", NewGuardRejectedError("a", "b", "go", ""), `a -> b on "go" refused by guard`},
		{"configuration", NewConfigurationError("machine m", "bad"), "invalid machine m: bad"},
		{"machine", NewMachineNotStartedError("Stop"), "Stop: state machine is not started"},
		{"action", NewActionError("entry", "a", errors.New("x")), `entry action of "a" failed: x`},
		{"action without cause", NewActionError("exit", "a", nil), `exit action of "a" failed`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewGuardRejectedError("a", "b", "go", ""))
	inner := NewMachineNotStartedError("op")

	testCases := []struct {
		err  error
		want ErrorCode
	}{
		{NewNoTransitionError("a", "go"), ErrCodeTransitionNotAllowed},
		{wrapped, ErrCodeGuardRejected},
		{NewConfigurationError("c", "i"), ErrCodeInvalidConfiguration},
		{inner, ErrCodeMachineNotStarted},
		{NewMachineError(ErrCodeInvalidState, "Start", "running"), ErrCodeInvalidState},
		{NewActionError("transition", "a", nil), ErrCodeActionFailed},
		{NewActionError("transition", "a", inner), ErrCodeActionFailed},
		{errors.New("plain"), ErrCodeNone},
		{nil, ErrCodeNone},
	}

	for _, tc := range testCases {
		if got := GetErrorCode(tc.err); got != tc.want {
			t.Errorf("GetErrorCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if !IsGuardError(wrapped) {
		t.Error("IsGuardError must see through wrapping")
	}
}

func TestErrorCodeString(t *testing.T) {
	if got := ErrCodeGuardRejected.String(); got != "guard-rejected" {
		t.Errorf("Expected guard-rejected, got %q", got)
	}
	if got := ErrorCode(99).String(); got != "none" {
		t.Errorf("Expected none for an unknown code, got %q", got)
	}
}
