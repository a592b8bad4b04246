package pipeerr_test

import (
	"errors"
	"strings"
	"testing"

	"biolabel/internal/pipeerr"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := pipeerr.Wrap(pipeerr.ErrValidation, "align", "load eeg", "missing column time_sec", base)
	if !errors.Is(err, pipeerr.ErrValidation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"align", "load eeg", "missing column time_sec", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCauseOrMarker(t *testing.T) {
	err := pipeerr.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, pipeerr.ErrIO) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{pipeerr.Wrap(pipeerr.ErrNotFound, "merge", "", "", nil), "not_found"},
		{pipeerr.Wrap(pipeerr.ErrBusy, "run", "", "", nil), "busy"},
		{pipeerr.Wrap(pipeerr.ErrConfiguration, "run", "", "", nil), "configuration"},
		{errors.New("plain"), "unknown"},
	}
	for _, tc := range cases {
		if got := pipeerr.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
