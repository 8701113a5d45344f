package conversation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Pool names used by the responder.
const (
	poolMismatch  = "mismatch"
	poolStress    = "stress"
	poolSadness   = "sadness"
	poolAnger     = "anger"
	poolFear      = "fear"
	poolGreeting  = "greeting"
	poolFeelings  = "feelings"
	poolListening = "listening"
	poolGeneral   = "general"
)

// TemplateSet holds the fixed crisis resource message and the per-category
// fallback reply pools. It is configuration data; the priority ordering lives
// in the Responder, not here.
type TemplateSet struct {
	CrisisMessage string              `yaml:"crisis_message"`
	Pools         map[string][]string `yaml:"pools"`
}

// DefaultTemplates returns the embedded reply packs.
func DefaultTemplates() TemplateSet {
	ts, err := parseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("conversation: embedded templates invalid: %v", err))
	}
	return ts
}

// LoadTemplates reads a template pack from path, falling back to the embedded
// defaults when path is empty.
func LoadTemplates(path string) (TemplateSet, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TemplateSet{}, fmt.Errorf("conversation: failed to read templates: %w", err)
	}
	return parseTemplates(data)
}

func parseTemplates(data []byte) (TemplateSet, error) {
	var ts TemplateSet
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return TemplateSet{}, fmt.Errorf("conversation: failed to parse templates: %w", err)
	}
	if strings.TrimSpace(ts.CrisisMessage) == "" {
		return TemplateSet{}, fmt.Errorf("conversation: template pack is missing the crisis message")
	}
	for _, name := range []string{poolMismatch, poolStress, poolSadness, poolAnger, poolFear, poolGreeting, poolFeelings, poolListening, poolGeneral} {
		if len(ts.Pools[name]) == 0 {
			return TemplateSet{}, fmt.Errorf("conversation: template pool %q is missing or empty", name)
		}
	}
	return ts, nil
}

// Pick selects a template from the named pool by rotation index. Deriving the
// index from the count of prior assistant turns keeps consecutive replies in a
// session from repeating while the engine stays stateless.
func (ts TemplateSet) Pick(pool string, rotation int) string {
	candidates := ts.Pools[pool]
	if len(candidates) == 0 {
		candidates = ts.Pools[poolGeneral]
	}
	if len(candidates) == 0 {
		// Unreachable with a validated pack; never answer with silence.
		return "I'm here with you. Can you tell me more about what's on your mind?"
	}
	if rotation < 0 {
		rotation = 0
	}
	return candidates[rotation%len(candidates)]
}
