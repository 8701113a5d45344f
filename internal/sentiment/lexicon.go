package sentiment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// CategoryPhrases binds one category to its ordered phrase list.
type CategoryPhrases struct {
	Category Category `yaml:"category"`
	Phrases  []string `yaml:"phrases"`
}

// Lexicon is the ordered keyword configuration consumed by the Classifier.
// List order is the priority order: the first category containing a hit wins.
// The crisis list must come first; LoadLexicon enforces that.
type Lexicon struct {
	Categories []CategoryPhrases `yaml:"categories"`
	Greetings  []string          `yaml:"greetings"`
}

// DefaultLexicon returns the embedded keyword configuration.
func DefaultLexicon() Lexicon {
	lex, err := parseLexicon(defaultLexiconYAML)
	if err != nil {
		// The embedded pack is validated by tests; a parse failure here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("sentiment: embedded lexicon invalid: %v", err))
	}
	return lex
}

// LoadLexicon reads a lexicon pack from path, falling back to the embedded
// defaults when path is empty.
func LoadLexicon(path string) (Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("sentiment: failed to read lexicon: %w", err)
	}
	return parseLexicon(data)
}

func parseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("sentiment: failed to parse lexicon: %w", err)
	}
	if len(lex.Categories) == 0 {
		return Lexicon{}, fmt.Errorf("sentiment: lexicon has no categories")
	}
	if lex.Categories[0].Category != CategoryCrisis {
		return Lexicon{}, fmt.Errorf("sentiment: crisis must be the first lexicon category, got %q", lex.Categories[0].Category)
	}
	for _, c := range lex.Categories {
		if len(c.Phrases) == 0 {
			return Lexicon{}, fmt.Errorf("sentiment: category %q has no phrases", c.Category)
		}
	}
	return lex, nil
}
