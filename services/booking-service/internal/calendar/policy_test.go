package calendar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultCandidates(t *testing.T) {
	got := slices.Collect(Default.Candidates())
	if len(got) != 18 {
		t.Fatalf("expected 18 candidates, got %d", len(got))
	}
	if got[0] != 540 || got[len(got)-1] != 1050 {
		t.Fatalf("expected 540..1050, got %d..%d", got[0], got[len(got)-1])
	}
	again := slices.Collect(Default.Candidates())
	if !slices.Equal(got, again) {
		t.Fatalf("expected restartable sequence")
	}
}

func TestCandidatesEarlyStop(t *testing.T) {
	n := 0
	for range Default.Candidates() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("expected to stop after 3, got %d", n)
	}
}

func TestValidate(t *testing.T) {
	bad := []Policy{
		{StartMinute: 540, EndMinute: 1080, StepMinutes: 0},
		{StartMinute: 600, EndMinute: 600, StepMinutes: 15},
		{StartMinute: -1, EndMinute: 600, StepMinutes: 15},
		{StartMinute: 0, EndMinute: 1441, StepMinutes: 15},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("expected ErrInvalidPolicy for %+v, got %v", p, err)
		}
	}
	if err := Default.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestFits(t *testing.T) {
	if !Default.Fits(1020, 60) {
		t.Fatalf("expected 17:00 + 60m to fit")
	}
	if Default.Fits(1021, 60) {
		t.Fatalf("expected 17:01 + 60m not to fit")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	body := "default:\n  start_minute: 480\n  end_minute: 960\n  step_minutes: 20\nprofessionals:\n  prof-1:\n    start_minute: 600\n    end_minute: 1200\n    step_minutes: 15\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	p, _ := src.PolicyFor(context.Background(), "prof-1")
	if p != (Policy{StartMinute: 600, EndMinute: 1200, StepMinutes: 15}) {
		t.Fatalf("unexpected override %+v", p)
	}
	p, _ = src.PolicyFor(context.Background(), "someone-else")
	if p != (Policy{StartMinute: 480, EndMinute: 960, StepMinutes: 20}) {
		t.Fatalf("unexpected default %+v", p)
	}
}

func TestParseRejectsInvalidOverride(t *testing.T) {
	_, err := parse([]byte("professionals:\n  p:\n    start_minute: 600\n    end_minute: 500\n    step_minutes: 15\n"))
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	src, err := parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if p, _ := src.PolicyFor(context.Background(), "x"); p != Default {
		t.Fatalf("expected Default, got %+v", p)
	}
}
