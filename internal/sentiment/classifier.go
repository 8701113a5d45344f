package sentiment

import (
	"context"
	"strings"

	"github.com/jonreiter/govader"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/attunehealth/attune/pkg/logging"
)

var classifierTracer = otel.Tracer("attune/sentiment-classifier")

// Classifier scans message text against the ordered lexicon and reports a
// single prioritized category. Matching is substring-based over case-folded
// text; the crisis list always runs first and short-circuits every other
// category. Over-triggering crisis handling is the intended failure mode.
type Classifier struct {
	lexicon Lexicon
	vader   *govader.SentimentIntensityAnalyzer
	logger  *logging.Logger
}

// NewClassifier creates a classifier over the given lexicon.
func NewClassifier(lexicon Lexicon, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		lexicon: lexicon,
		vader:   govader.NewSentimentIntensityAnalyzer(),
		logger:  logger,
	}
}

// Classify analyzes one message. Empty or whitespace-only text yields a
// neutral signal; that is a normal outcome, not an error.
func (c *Classifier) Classify(ctx context.Context, text string) Signal {
	_, span := classifierTracer.Start(ctx, "sentiment.classify")
	defer span.End()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Signal{Category: CategoryNeutral}
	}

	lowered := strings.ToLower(trimmed)
	valence := c.vader.PolarityScores(trimmed).Compound

	for _, entry := range c.lexicon.Categories {
		for _, phrase := range entry.Phrases {
			if strings.Contains(lowered, phrase) {
				span.SetAttributes(
					attribute.String("sentiment.category", string(entry.Category)),
					attribute.String("sentiment.matched_phrase", phrase),
				)
				if entry.Category == CategoryCrisis {
					c.logger.Warn("crisis language detected", "matched_phrase", phrase)
				}
				return Signal{
					Category:      entry.Category,
					MatchedPhrase: phrase,
					Valence:       valence,
				}
			}
		}
	}

	span.SetAttributes(attribute.String("sentiment.category", string(CategoryNeutral)))
	return Signal{Category: CategoryNeutral, Valence: valence}
}

// IsGreeting reports whether the message reads as a conversation opener.
func (c *Classifier) IsGreeting(text string) bool {
	lowered := strings.ToLower(text)
	for _, word := range c.lexicon.Greetings {
		if containsWord(lowered, word) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "hi" does not fire inside
// "nothing" the way a bare substring scan would.
func containsWord(text, word string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
	for _, f := range fields {
		if f == word {
			return true
		}
	}
	return false
}
