package sentiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier(DefaultLexicon(), nil)
}

func TestClassifyCategories(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		message      string
		wantCategory Category
		wantPhrase   string
	}{
		{
			name:         "crisis direct",
			message:      "I want to end it all",
			wantCategory: CategoryCrisis,
			wantPhrase:   "end it all",
		},
		{
			name:         "stress",
			message:      "I've been stressed about work",
			wantCategory: CategoryStress,
			wantPhrase:   "stressed",
		},
		{
			name:         "sadness",
			message:      "I feel so hopeless lately",
			wantCategory: CategorySadness,
			wantPhrase:   "hopeless",
		},
		{
			name:         "anger",
			message:      "I'm furious at my brother",
			wantCategory: CategoryAnger,
			wantPhrase:   "furious",
		},
		{
			name:         "fear",
			message:      "I'm terrified of the results",
			wantCategory: CategoryFear,
			wantPhrase:   "terrified",
		},
		{
			name:         "neutral",
			message:      "The weather was nice today",
			wantCategory: CategoryNeutral,
			wantPhrase:   "",
		},
		{
			name:         "case folded",
			message:      "I AM SO STRESSED OUT",
			wantCategory: CategoryStress,
			wantPhrase:   "stressed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := c.Classify(ctx, tt.message)
			assert.Equal(t, tt.wantCategory, sig.Category)
			assert.Equal(t, tt.wantPhrase, sig.MatchedPhrase)
		})
	}
}

// Crisis must win no matter which other category keywords co-occur.
func TestClassifyCrisisTotalPriority(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()

	messages := []string{
		"I'm so stressed I want to end it all",
		"I'm sad and angry and I've thought about suicide",
		"terrified, furious, hopeless, and planning to hurt myself",
		"i might overdose because of all this pressure",
	}
	for _, msg := range messages {
		sig := c.Classify(ctx, msg)
		require.Equal(t, CategoryCrisis, sig.Category, "message: %q", msg)
		assert.NotEmpty(t, sig.MatchedPhrase)
	}
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	c := newTestClassifier(t)

	// "stressed" (stress list) and "sad" (sadness list) both match; stress is
	// listed first in the lexicon, so it is the reported category.
	sig := c.Classify(context.Background(), "I'm stressed and sad")
	assert.Equal(t, CategoryStress, sig.Category)
}

func TestClassifyEmptyText(t *testing.T) {
	c := newTestClassifier(t)

	for _, msg := range []string{"", "   ", "\n\t "} {
		sig := c.Classify(context.Background(), msg)
		assert.Equal(t, CategoryNeutral, sig.Category)
		assert.Empty(t, sig.MatchedPhrase)
	}
}

func TestClassifyValenceAttached(t *testing.T) {
	c := newTestClassifier(t)

	positive := c.Classify(context.Background(), "I love my wonderful happy life")
	negative := c.Classify(context.Background(), "I feel so hopeless and miserable")
	assert.Greater(t, positive.Valence, negative.Valence)
}

func TestIsGreeting(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.IsGreeting("Hello, I need someone to talk to"))
	assert.True(t, c.IsGreeting("hi there"))
	// "hi" must not fire inside other words.
	assert.False(t, c.IsGreeting("nothing much happened"))
	assert.False(t, c.IsGreeting("I had a sandwich"))
}

func TestDefaultLexiconShape(t *testing.T) {
	lex := DefaultLexicon()
	require.NotEmpty(t, lex.Categories)
	assert.Equal(t, CategoryCrisis, lex.Categories[0].Category)
	for _, c := range lex.Categories {
		assert.NotEmpty(t, c.Phrases, "category %s", c.Category)
	}
}

func TestLoadLexiconRejectsMisordered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	bad := "categories:\n  - category: stress\n    phrases: [stressed]\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := LoadLexicon(path)
	assert.Error(t, err)
}
