// Package modelchain holds the static per-mode model fallback tables.
package modelchain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeQuick    Mode = "quick"
	ModeNormal   Mode = "normal"
	ModeThinking Mode = "thinking"
)

// chain is one ordered fallback sequence with its per-attempt timeout.
type chain struct {
	models  []string
	timeout time.Duration
}

// Selector answers which models to try, in which order, under which timeout.
// It is built once at startup and read-only afterwards.
type Selector struct {
	modes     map[Mode]chain
	vision    chain
	globalMax time.Duration
}

type chainYAML struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
	Timeout   string   `yaml:"timeout"`
}

type fileYAML struct {
	Modes     map[string]chainYAML `yaml:"modes"`
	Vision    *chainYAML           `yaml:"vision"`
	GlobalMax string               `yaml:"global_max"`
}

// Load reads the chain table from a yaml file, falling back to the built-in
// defaults when the file does not exist. Modes absent from the file keep
// their defaults.
func Load(path string) (*Selector, error) {
	s := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}

	var file fileYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}

	for name, cy := range file.Modes {
		c, err := cy.toChain()
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", name, err)
		}
		if c.timeout == 0 {
			c.timeout = s.modes[Mode(name)].timeout
		}
		if c.timeout == 0 {
			c.timeout = s.modes[ModeNormal].timeout
		}
		s.modes[Mode(name)] = c
	}

	if file.Vision != nil {
		c, err := file.Vision.toChain()
		if err != nil {
			return nil, fmt.Errorf("vision: %w", err)
		}
		if c.timeout == 0 {
			c.timeout = s.vision.timeout
		}
		s.vision = c
	}

	if file.GlobalMax != "" {
		d, err := time.ParseDuration(file.GlobalMax)
		if err != nil {
			return nil, fmt.Errorf("global_max: %w", err)
		}
		s.globalMax = d
	}

	return s, nil
}

func (cy chainYAML) toChain() (chain, error) {
	if cy.Primary == "" {
		return chain{}, fmt.Errorf("primary model is required")
	}
	c := chain{models: append([]string{cy.Primary}, cy.Fallbacks...)}
	if cy.Timeout != "" {
		d, err := time.ParseDuration(cy.Timeout)
		if err != nil {
			return chain{}, fmt.Errorf("timeout: %w", err)
		}
		c.timeout = d
	}
	return c, nil
}

func defaults() *Selector {
	return &Selector{
		modes: map[Mode]chain{
			ModeQuick: {
				models:  []string{"google/gemini-2.0-flash-001", "openai/gpt-4o-mini", "meta-llama/llama-3.3-70b-instruct"},
				timeout: 15 * time.Second,
			},
			ModeNormal: {
				models:  []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet", "google/gemini-2.0-flash-001"},
				timeout: 30 * time.Second,
			},
			ModeThinking: {
				models:  []string{"deepseek/deepseek-r1", "openai/o3-mini", "anthropic/claude-3.7-sonnet:thinking"},
				timeout: 90 * time.Second,
			},
		},
		vision: chain{
			models:  []string{"openai/gpt-4o", "google/gemini-2.0-flash-001"},
			timeout: 45 * time.Second,
		},
		globalMax: 2 * time.Minute,
	}
}

// ChainFor returns the ordered model ids for a mode, primary first. Unknown
// modes get the normal chain.
func (s *Selector) ChainFor(mode Mode) []string {
	c, ok := s.modes[mode]
	if !ok {
		c = s.modes[ModeNormal]
	}
	return append([]string(nil), c.models...)
}

// TimeoutFor returns the per-attempt timeout budget for a mode.
func (s *Selector) TimeoutFor(mode Mode) time.Duration {
	c, ok := s.modes[mode]
	if !ok {
		c = s.modes[ModeNormal]
	}
	return c.timeout
}

// VisionChain is the separate chain used when the request carries image
// input.
func (s *Selector) VisionChain() []string {
	return append([]string(nil), s.vision.models...)
}

func (s *Selector) VisionTimeout() time.Duration {
	return s.vision.timeout
}

// GlobalMax bounds the total time spent across all attempts in a chain.
func (s *Selector) GlobalMax() time.Duration {
	return s.globalMax
}
