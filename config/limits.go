package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LimitsFile is the optional YAML override for rate limit windows and the
// cooldown ladder. Durations are expressed in seconds. Example:
//
//	authenticated:
//	  - name: minute
//	    span_seconds: 60
//	    limit: 10
//	anonymous:
//	  - name: minute
//	    span_seconds: 60
//	    limit: 3
//	cooldowns_seconds: [60, 300, 1800, 3600]
//	violation_reset_seconds: 3600
type LimitsFile struct {
	Authenticated         []LimitWindow `yaml:"authenticated"`
	Anonymous             []LimitWindow `yaml:"anonymous"`
	CooldownsSeconds      []int         `yaml:"cooldowns_seconds"`
	ViolationResetSeconds int           `yaml:"violation_reset_seconds"`
}

// LimitWindow is one sliding window entry in the limits file.
type LimitWindow struct {
	Name        string `yaml:"name"`
	SpanSeconds int    `yaml:"span_seconds"`
	Limit       int64  `yaml:"limit"`
}

// Span returns the window length as a duration.
func (w LimitWindow) Span() time.Duration {
	return time.Duration(w.SpanSeconds) * time.Second
}

// Cooldowns returns the escalation ladder as durations.
func (lf *LimitsFile) Cooldowns() []time.Duration {
	out := make([]time.Duration, len(lf.CooldownsSeconds))
	for i, s := range lf.CooldownsSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// ViolationReset returns the escalation reset horizon as a duration.
func (lf *LimitsFile) ViolationReset() time.Duration {
	return time.Duration(lf.ViolationResetSeconds) * time.Second
}

// LoadLimitsFile reads and validates a limits file.
func LoadLimitsFile(path string) (*LimitsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading limits file: %w", err)
	}

	var lf LimitsFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing limits file: %w", err)
	}
	if err := lf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits file %s: %w", path, err)
	}
	return &lf, nil
}

// Validate rejects windows that could never admit a request.
func (lf *LimitsFile) Validate() error {
	for _, set := range [][]LimitWindow{lf.Authenticated, lf.Anonymous} {
		for _, w := range set {
			if w.Name == "" {
				return fmt.Errorf("window name cannot be empty")
			}
			if w.SpanSeconds <= 0 {
				return fmt.Errorf("window %q span must be positive", w.Name)
			}
			if w.Limit <= 0 {
				return fmt.Errorf("window %q limit must be positive", w.Name)
			}
		}
	}
	for i, s := range lf.CooldownsSeconds {
		if s <= 0 {
			return fmt.Errorf("cooldown %d must be positive", i)
		}
	}
	if lf.ViolationResetSeconds < 0 {
		return fmt.Errorf("violation reset cannot be negative")
	}
	return nil
}
