package media

import (
	"math"
	"testing"
)

func TestResolveFPS(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"valid", 29.97, 29.97},
		{"zero", 0, DefaultFPS},
		{"negative", -5, DefaultFPS},
		{"nan", math.NaN(), DefaultFPS},
		{"inf", math.Inf(1), DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveFPS(tt.in); got != tt.want {
				t.Errorf("resolveFPS(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSinkErrorFormat(t *testing.T) {
	err := &SinkError{Frames: 42, Detail: "broken pipe", Err: errFake}
	msg := err.Error()
	if msg != "encoder failed after 42 frames: fake: broken pipe" {
		t.Errorf("unexpected message: %q", msg)
	}

	bare := &SinkError{Frames: 7, Err: errFake}
	if bare.Error() != "encoder failed after 7 frames: fake" {
		t.Errorf("unexpected message: %q", bare.Error())
	}

	if err.Unwrap() != errFake {
		t.Error("Unwrap must return the wrapped error")
	}
}

var errFake = errString("fake")

type errString string

func (e errString) Error() string { return string(e) }
