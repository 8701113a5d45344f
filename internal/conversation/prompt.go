package conversation

import (
	"fmt"
	"strings"

	"github.com/attunehealth/attune/internal/sentiment"
)

const therapeuticSystemPrompt = `You are a compassionate, empathetic AI mental health support assistant. Your role is to:

1. Provide emotional support and validation
2. Use reflective listening techniques
3. Ask open-ended questions to help users explore their feelings
4. Show empathy and understanding without judgment
5. Encourage users to express themselves safely
6. Recognize when professional help may be needed
7. Never diagnose or provide medical advice
8. Use warm, supportive, and professional language

Guidelines:
- Acknowledge the user's feelings first
- Avoid giving direct advice; instead, help users find their own solutions
- Validate emotions without minimizing them
- Use therapeutic techniques like reflection, reframing, and normalization

Remember: You are not a replacement for professional therapy, but you can provide supportive listening and emotional validation.`

// buildSystemPrompt assembles the generator system prompt: the therapeutic
// base plus an emotional-context note built from the fused signals. The crisis
// branch never reaches the generator, so no crisis wording is needed here.
func buildSystemPrompt(fused FusedContext, category sentiment.Category) string {
	var b strings.Builder
	b.WriteString(therapeuticSystemPrompt)

	var notes []string
	if !fused.Facial.NoFace() {
		notes = append(notes, fmt.Sprintf("detected facial emotion: %s (confidence %.2f)", fused.Facial.Dominant, fused.Facial.Confidence))
	}
	if fused.Trend != "" {
		notes = append(notes, fmt.Sprintf("recent emotional pattern: %s", fused.Trend))
	}
	if category != sentiment.CategoryNeutral {
		notes = append(notes, fmt.Sprintf("message sentiment category: %s", category))
	}
	if fused.Signal.Valence != 0 {
		notes = append(notes, fmt.Sprintf("message valence score: %.2f", fused.Signal.Valence))
	}
	if fused.Mismatch {
		notes = append(notes, "the user's words sound fine but their facial expression disagrees; gently acknowledge that gap")
	}

	if len(notes) > 0 {
		b.WriteString("\n\nUser's current emotional state: ")
		b.WriteString(strings.Join(notes, "; "))
		b.WriteString(".")
	}
	return b.String()
}

// promptMessages bounds the conversation window sent to the generator and
// appends the current user message.
func promptMessages(fused FusedContext, window int) []ChatMessage {
	recent := fused.Recent
	if window > 0 && len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	msgs := make([]ChatMessage, 0, len(recent)+1)
	for _, m := range recent {
		if m.Role != ChatRoleUser && m.Role != ChatRoleAssistant {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, ChatMessage{Role: ChatRoleUser, Content: fused.Message})
}
