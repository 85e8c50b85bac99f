package calendar

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source resolves the working-hours policy for a professional.
type Source interface {
	PolicyFor(ctx context.Context, professionalID string) (Policy, error)
}

type staticSource struct {
	policy Policy
}

// NewStaticSource gives every professional the same policy.
func NewStaticSource(p Policy) (Source, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &staticSource{policy: p}, nil
}

func (s *staticSource) PolicyFor(context.Context, string) (Policy, error) {
	return s.policy, nil
}

type fileSource struct {
	fallback  Policy
	overrides map[string]Policy
}

type policyFile struct {
	Default       *Policy           `yaml:"default"`
	Professionals map[string]Policy `yaml:"professionals"`
}

// LoadFile reads a YAML policy file:
//
//	default: {start_minute: 540, end_minute: 1080, step_minutes: 30}
//	professionals:
//	  prof-42: {start_minute: 600, end_minute: 1200, step_minutes: 15}
//
// A missing default falls back to Default.
func LoadFile(path string) (Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar policy: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (Source, error) {
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse calendar policy: %w", err)
	}
	src := &fileSource{fallback: Default, overrides: map[string]Policy{}}
	if f.Default != nil {
		if err := f.Default.Validate(); err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		src.fallback = *f.Default
	}
	for id, p := range f.Professionals {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("professional %s: %w", id, err)
		}
		src.overrides[id] = p
	}
	return src, nil
}

func (s *fileSource) PolicyFor(_ context.Context, professionalID string) (Policy, error) {
	if p, ok := s.overrides[professionalID]; ok {
		return p, nil
	}
	return s.fallback, nil
}
