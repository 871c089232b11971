// Package platform describes code-generation targets such as V0, Lovable and
// Magic Patterns: their vocabulary, approach and scenario presets.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"vibe-mind/internal/registry"
)

var ErrInvalid = errors.New("invalid platform")

type Strategy struct {
	Keywords []string `json:"keywords"`
	Approach string   `json:"approach"`
}

type Scenario struct {
	Prompt       string   `json:"prompt,omitempty"`
	UserRoles    []string `json:"user_roles,omitempty"`
	CoreFeatures []string `json:"core_features,omitempty"`

	Extra map[string]any `json:"-"`
}

type plainScenario Scenario

func (s *Scenario) UnmarshalJSON(data []byte) error {
	var base plainScenario
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	extra, err := registry.SplitExtra(data, base)
	if err != nil {
		return err
	}
	*s = Scenario(base)
	s.Extra = extra
	return nil
}

func (s Scenario) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainScenario(s))
	if err != nil {
		return nil, err
	}
	return registry.MergeExtra(data, s.Extra)
}

type Config struct {
	PlatformName    string              `json:"platform_name"`
	Description     string              `json:"description"`
	Strategy        Strategy            `json:"strategy"`
	Scenarios       map[string]Scenario `json:"scenarios"`
	PromptTemplates map[string]string   `json:"prompt_templates,omitempty"`

	Extra map[string]any `json:"-"`
}

type plainConfig Config

func (c *Config) UnmarshalJSON(data []byte) error {
	var base plainConfig
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	extra, err := registry.SplitExtra(data, base)
	if err != nil {
		return err
	}
	*c = Config(base)
	c.Extra = extra
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainConfig(c))
	if err != nil {
		return nil, err
	}
	return registry.MergeExtra(data, c.Extra)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.PlatformName) == "" {
		return fmt.Errorf("%w: platform_name is required", ErrInvalid)
	}
	return nil
}

// BaseTemplate is the prompt used when a scenario carries none of its own.
func (c Config) BaseTemplate() string {
	return c.PromptTemplates["base_template"]
}

// ScenarioKeys returns the scenario names in sorted order.
func (c Config) ScenarioKeys() []string {
	keys := make([]string, 0, len(c.Scenarios))
	for k := range c.Scenarios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scenario returns the named scenario, or the first one by name when it is
// missing. ok reports whether the requested name was found. A config without
// scenarios yields a zero Scenario.
func (c Config) Scenario(name string) (used string, s Scenario, ok bool) {
	if s, ok := c.Scenarios[name]; ok {
		return name, s, true
	}
	keys := c.ScenarioKeys()
	if len(keys) == 0 {
		return "", Scenario{}, false
	}
	return keys[0], c.Scenarios[keys[0]], false
}

// Keywords returns at most n strategy keywords.
func (c Config) Keywords(n int) []string {
	if len(c.Strategy.Keywords) <= n {
		return c.Strategy.Keywords
	}
	return c.Strategy.Keywords[:n]
}

func Decode(data []byte, ext string) (Config, error) {
	data, err := registry.Normalize(data, ext)
	if err != nil {
		return Config{}, err
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

type Registry = registry.Registry[Config]

func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return registry.New(registry.Options[Config]{
		Dir:    dir,
		Kind:   "platform",
		Decode: Decode,
		Logger: logger,
	})
}
