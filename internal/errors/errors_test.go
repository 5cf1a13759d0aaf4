package errors

import (
	"errors"
	"fmt"
	"testing"
)

type customError struct {
	Msg string
}

func (e customError) Error() string { return e.Msg }

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "test error" {
		t.Errorf("expected 'test error', got '%s'", err.Error())
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(baseErr, "wrapped")
		if wrapped == nil {
			t.Fatal("expected wrapped error, got nil")
		}
		expected := "wrapped: base error"
		if wrapped.Error() != expected {
			t.Errorf("expected '%s', got '%s'", expected, wrapped.Error())
		}
		if !errors.Is(wrapped, baseErr) {
			t.Error("expected wrapped error to wrap baseErr")
		}
	})

	t.Run("wrap nil error", func(t *testing.T) {
		wrapped := Wrap(nil, "wrapped")
		if wrapped != nil {
			t.Errorf("expected nil, got %v", wrapped)
		}
	})
}

func TestIs(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "profile not found")
	if !Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
	if Is(wrapped, ErrConflict) {
		t.Error("did not expect wrapped error to match ErrConflict")
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", customError{Msg: "inner"})

	var target customError
	if !As(err, &target) {
		t.Fatal("expected As to find customError")
	}
	if target.Msg != "inner" {
		t.Errorf("expected 'inner', got '%s'", target.Msg)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid input", err: Wrap(ErrInvalidInput, "missing unique id"), want: true},
		{name: "rejected", err: Wrap(ErrRejected, "status 422"), want: true},
		{name: "unavailable", err: Wrap(ErrUnavailable, "status 503"), want: false},
		{name: "unclassified", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}
