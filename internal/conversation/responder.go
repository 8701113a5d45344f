package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/observability/metrics"
	"github.com/attunehealth/attune/internal/sentiment"
	"github.com/attunehealth/attune/pkg/logging"
)

const (
	defaultGeneratorTimeout = 10 * time.Second
	defaultHistoryWindow    = 10
	defaultMaxTokens        = 300
	defaultTemperature      = 0.7

	// Neutral messages shorter than this many words get the listening pool.
	shortMessageWords = 5
)

// Reply is the selector output for one turn.
type Reply struct {
	Text      string
	Crisis    bool
	Category  sentiment.Category
	Generated bool
}

// Responder is the priority-ordered decision procedure: crisis, then
// mismatch, then categorized emotion, with generator-or-template selection
// inside the chosen category. It depends only on the Generator interface;
// with a nil generator it runs entirely on local templates.
type Responder struct {
	generator     Generator
	templates     TemplateSet
	timeout       time.Duration
	overrideConf  float64
	historyWindow int
	metrics       *metrics.ConversationMetrics
	logger        *logging.Logger
}

// NewResponder builds a Responder. generator may be nil. overrideConf is the
// minimum facial confidence for the facial label to stand in for a neutral
// text signal; it shares its default with the mismatch threshold.
func NewResponder(generator Generator, templates TemplateSet, timeout time.Duration, overrideConf float64, historyWindow int, m *metrics.ConversationMetrics, logger *logging.Logger) *Responder {
	if timeout <= 0 {
		timeout = defaultGeneratorTimeout
	}
	if overrideConf <= 0 {
		overrideConf = defaultMismatchThreshold
	}
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{
		generator:     generator,
		templates:     templates,
		timeout:       timeout,
		overrideConf:  overrideConf,
		historyWindow: historyWindow,
		metrics:       m,
		logger:        logger,
	}
}

// Respond evaluates the priority branches top to bottom; the first match wins.
func (r *Responder) Respond(ctx context.Context, fused FusedContext) Reply {
	// Branch 1: crisis. A fixed local constant, never the generator, so the
	// safety message cannot be lost to a network failure.
	if fused.Signal.Category == sentiment.CategoryCrisis {
		r.metrics.ObserveCrisis()
		return Reply{
			Text:     r.templates.CrisisMessage,
			Crisis:   true,
			Category: sentiment.CategoryCrisis,
		}
	}

	rotation := assistantTurns(fused.Recent)

	// Branch 2: verbal/facial mismatch.
	if fused.Mismatch {
		text := strings.ReplaceAll(
			r.templates.Pick(poolMismatch, rotation),
			"{emotion}", describeEmotion(fused.Facial.Dominant),
		)
		return Reply{Text: text, Category: sentiment.CategoryNeutral}
	}

	// Branch 3: effective category from the text signal, else a confident
	// facial read, else general/neutral.
	category := fused.Signal.Category
	if category == sentiment.CategoryNeutral &&
		fused.Facial.Dominant != emotion.Neutral &&
		fused.Facial.Confidence >= r.overrideConf {
		category = facialCategory(fused.Facial.Dominant)
	}

	pool := r.poolFor(category, fused)

	// Branch 4: one generator attempt inside the chosen category, template
	// fallback on any failure.
	if r.generator != nil {
		if text, ok := r.generate(ctx, fused, category); ok {
			return Reply{Text: text, Category: category, Generated: true}
		}
	}

	return Reply{Text: r.templates.Pick(pool, rotation), Category: category}
}

func (r *Responder) generate(ctx context.Context, fused FusedContext, category sentiment.Category) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.generator.Generate(ctx, GenerateRequest{
		System:      buildSystemPrompt(fused, category),
		Messages:    promptMessages(fused, r.historyWindow),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		// Expected failure mode; the user sees a template, not an error.
		r.logger.Warn("generator failed, falling back to templates",
			"category", category,
			"error", err.Error(),
		)
		r.metrics.ObserveGeneratorFallback()
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.logger.Warn("generator returned empty text, falling back to templates", "category", category)
		r.metrics.ObserveGeneratorFallback()
		return "", false
	}
	return text, true
}

// poolFor maps the effective category to a template pool, with the greeting
// and short-message pools covering the neutral case.
func (r *Responder) poolFor(category sentiment.Category, fused FusedContext) string {
	switch category {
	case sentiment.CategoryStress:
		return poolStress
	case sentiment.CategorySadness:
		return poolSadness
	case sentiment.CategoryAnger:
		return poolAnger
	case sentiment.CategoryFear:
		return poolFear
	}
	if fused.Greeting {
		return poolGreeting
	}
	if mentionsFeelings(fused.Message) {
		return poolFeelings
	}
	if len(strings.Fields(fused.Message)) < shortMessageWords {
		return poolListening
	}
	return poolGeneral
}

// mentionsFeelings catches messages that talk about feelings without naming a
// categorized emotion; they get a reflective prompt instead of the general
// pool.
func mentionsFeelings(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "feel") || strings.Contains(lower, "emotion")
}

// facialCategory maps a facial label onto the sentiment categories the reply
// pools are keyed by. Labels with no therapeutic pool of their own (happy,
// surprise, disgust) stay neutral and take the general path.
func facialCategory(label emotion.Label) sentiment.Category {
	switch label {
	case emotion.Sad:
		return sentiment.CategorySadness
	case emotion.Angry:
		return sentiment.CategoryAnger
	case emotion.Fear:
		return sentiment.CategoryFear
	}
	return sentiment.CategoryNeutral
}

// describeEmotion renders a facial label for use inside a sentence.
func describeEmotion(label emotion.Label) string {
	switch label {
	case emotion.Sad:
		return "sad"
	case emotion.Angry:
		return "angry"
	case emotion.Fear:
		return "afraid"
	case emotion.Happy:
		return "happy"
	case emotion.Surprise:
		return "surprised"
	case emotion.Disgust:
		return "uneasy"
	}
	return string(label)
}

// assistantTurns counts prior assistant messages; it drives template rotation.
func assistantTurns(recent []ChatMessage) int {
	n := 0
	for _, m := range recent {
		if m.Role == ChatRoleAssistant {
			n++
		}
	}
	return n
}
