package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// Manifest is the YAML description of a plan: a named task set plus
// optional policy overrides on top of the configured scheduler defaults.
type Manifest struct {
	Name   string         `yaml:"name"`
	Policy ManifestPolicy `yaml:"policy"`
	Tasks  []ManifestTask `yaml:"tasks"`
}

// ManifestPolicy mirrors task.Policy with string durations so manifests
// can say "30s" instead of nanosecond counts. Zero values defer to the
// configured defaults.
type ManifestPolicy struct {
	Strategy        string  `yaml:"strategy"`
	MaxConcurrency  int     `yaml:"max_concurrency"`
	MaxAttempts     int     `yaml:"max_attempts"`
	InitialBackoff  string  `yaml:"initial_backoff"`
	BackoffFactor   float64 `yaml:"backoff_factor"`
	MaxBackoff      string  `yaml:"max_backoff"`
	Timeout         string  `yaml:"timeout"`
	ContinueOnError *bool   `yaml:"continue_on_error"`
}

// ManifestTask is one task entry. Command is the argv to execute; an
// empty command simulates work by sleeping for the estimated duration.
type ManifestTask struct {
	ID        string           `yaml:"id"`
	Type      string           `yaml:"type"`
	Command   []string         `yaml:"command"`
	DependsOn []string         `yaml:"depends_on"`
	Inputs    []string         `yaml:"inputs"`
	Outputs   []string         `yaml:"outputs"`
	Duration  string           `yaml:"duration"`
	Resources map[string]int64 `yaml:"resources"`
	Priority  int              `yaml:"priority"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("manifest %s declares no tasks", path)
	}
	return &m, nil
}

// EngineTasks converts the manifest's task entries into engine tasks.
func (m *Manifest) EngineTasks() ([]*task.Task, error) {
	out := make([]*task.Task, 0, len(m.Tasks))
	for _, mt := range m.Tasks {
		t := &task.Task{
			ID:        mt.ID,
			Type:      mt.Type,
			DependsOn: mt.DependsOn,
			Inputs:    mt.Inputs,
			Outputs:   mt.Outputs,
			Priority:  mt.Priority,
		}
		if mt.Duration != "" {
			d, err := time.ParseDuration(mt.Duration)
			if err != nil {
				return nil, fmt.Errorf("task %s: bad duration %q: %w", mt.ID, mt.Duration, err)
			}
			t.EstimatedDuration = d
		}
		if len(mt.Resources) > 0 {
			t.Resources = make(map[task.ResourceType]int64, len(mt.Resources))
			for name, amount := range mt.Resources {
				rt := task.ResourceType(name)
				if !rt.IsValid() {
					return nil, fmt.Errorf("task %s: unknown resource type %q", mt.ID, name)
				}
				t.Resources[rt] = amount
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// EnginePolicy layers the manifest's policy overrides onto base.
func (m *Manifest) EnginePolicy(base task.Policy) (task.Policy, error) {
	p := base
	mp := m.Policy

	if mp.Strategy != "" {
		s := task.Strategy(mp.Strategy)
		if !s.IsValid() {
			return p, fmt.Errorf("unknown strategy %q", mp.Strategy)
		}
		p.Strategy = s
	}
	if mp.MaxConcurrency > 0 {
		p.MaxConcurrency = mp.MaxConcurrency
	}
	if mp.MaxAttempts > 0 {
		p.Retry.MaxAttempts = mp.MaxAttempts
	}
	if mp.BackoffFactor > 0 {
		p.Retry.BackoffMultiplier = mp.BackoffFactor
	}
	if mp.ContinueOnError != nil {
		p.ContinueOnError = *mp.ContinueOnError
	}

	var err error
	if p.Retry.InitialBackoff, err = overrideDuration(mp.InitialBackoff, p.Retry.InitialBackoff); err != nil {
		return p, fmt.Errorf("initial_backoff: %w", err)
	}
	if p.Retry.MaxBackoff, err = overrideDuration(mp.MaxBackoff, p.Retry.MaxBackoff); err != nil {
		return p, fmt.Errorf("max_backoff: %w", err)
	}
	if p.Timeout, err = overrideDuration(mp.Timeout, p.Timeout); err != nil {
		return p, fmt.Errorf("timeout: %w", err)
	}
	return p, nil
}

func overrideDuration(s string, base time.Duration) (time.Duration, error) {
	if s == "" {
		return base, nil
	}
	return time.ParseDuration(s)
}

// commandOf returns the argv for a task ID, or nil for simulated tasks.
func (m *Manifest) commandOf(taskID string) []string {
	for _, mt := range m.Tasks {
		if mt.ID == taskID {
			return mt.Command
		}
	}
	return nil
}
