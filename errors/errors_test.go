package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"circuit open", ErrCircuitOpen, true},
		{"interrupted", ErrInterrupted, true},
		{"broken connection", ErrBrokenConnection, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"no space", ErrNoSpace, false},
		{"fatal error", ErrResourceExhausted, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"resource exhausted", ErrResourceExhausted, true},
		{"missing config", ErrMissingConfig, true},
		{"panic in message", fmt.Errorf("worker panic recovered"), true},
		{"no space", ErrNoSpace, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsFatal(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"no space", ErrNoSpace, true},
		{"not enough data", ErrNotEnoughData, true},
		{"too many consumers", ErrTooManyConsumers, true},
		{"session closed", ErrSessionClosed, true},
		{"invalid config", ErrInvalidConfig, true},
		{"wrapped invalid config", fmt.Errorf("parse: %w", ErrInvalidConfig), true},
		{"interrupted", ErrInterrupted, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsInvalid(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ErrorTransient},
		{"broken connection", ErrBrokenConnection, ErrorTransient},
		{"resource exhausted", ErrResourceExhausted, ErrorFatal},
		{"too many consumers", ErrTooManyConsumers, ErrorInvalid},
		{"wrapped invalid", WrapInvalid(ErrResourceExhausted, "Circular", "New", "allocate"), ErrorInvalid},
		{"unknown", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := Classify(test.err); result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "c", "m", "a") != nil {
		t.Error("expected nil for nil error")
	}

	err := Wrap(ErrNoSpace, "Channel", "Write", "insert")
	expected := "Channel.Write: insert failed: no space left in buffer"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if !errors.Is(err, ErrNoSpace) {
		t.Error("expected wrapped error to match sentinel")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.wrap(nil, "c", "m", "a") != nil {
				t.Fatal("expected nil for nil error")
			}

			err := test.wrap(ErrSessionClosed, "Consumer", "Read", "take batch")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != test.class {
				t.Errorf("expected class %s, got %s", test.class, ce.Class)
			}
			if ce.Component != "Consumer" || ce.Operation != "Read" {
				t.Errorf("unexpected context %s.%s", ce.Component, ce.Operation)
			}
			if !errors.Is(err, ErrSessionClosed) {
				t.Error("expected classified error to unwrap to sentinel")
			}
			if !strings.HasPrefix(err.Error(), "Consumer.Read: take batch failed") {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Interrupted(ctx, "Channel", "Read", "wait for data")
	if !errors.Is(err, ErrInterrupted) {
		t.Error("expected ErrInterrupted")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("expected context.Canceled cause")
	}
	if !IsTransient(err) {
		t.Error("expected interrupted wait to be transient")
	}

	err = Interrupted(context.Background(), "Channel", "Open", "wait for peer")
	if !errors.Is(err, context.Canceled) {
		t.Error("expected fallback cause context.Canceled")
	}
}
