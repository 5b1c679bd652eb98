package services_test

import (
	"errors"
	"strings"
	"testing"

	"strand/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "mkfastq", "run1", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"mkfastq", "run1", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "acquire", "run1", "no origin", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
}

func TestMessageStripsSentinelPrefix(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "multi", "s1", "missing reads", nil)
	msg := services.Message(err)
	if strings.Contains(msg, services.ErrValidation.Error()) {
		t.Fatalf("expected sentinel prefix removed, got %q", msg)
	}
	if !strings.Contains(msg, "missing reads") {
		t.Fatalf("expected detail retained, got %q", msg)
	}
	if services.Message(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}

func TestRecoverableClassification(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{services.ErrExternalTool, true},
		{services.ErrValidation, true},
		{services.ErrNotFound, true},
		{services.ErrConfiguration, false},
		{services.ErrUnsupportedFormat, false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "unit", "detail", nil)
		if got := services.Recoverable(err); got != tc.want {
			t.Fatalf("Recoverable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
	if !services.Recoverable(errors.New("plain")) {
		t.Fatal("expected plain errors to be recoverable")
	}
}
