package conversation

import (
	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/sentiment"
)

const (
	defaultMismatchThreshold = 0.6
	defaultTrendWindow       = 5
)

// FusedContext is the transient decision input for one turn: the text signal,
// the latest facial snapshot, the mismatch and trend flags derived from them,
// and a window of recent conversation. It is built fresh per turn and never
// persisted.
type FusedContext struct {
	Message  string
	Signal   sentiment.Signal
	Facial   emotion.Snapshot
	Mismatch bool
	Trend    emotion.Label // empty when no trend is present
	Recent   []ChatMessage
	Greeting bool
}

// Fuser combines the text signal, the latest facial snapshot, and a short
// window of historical snapshots into a FusedContext. Pure; the caller fetches
// history from the session store.
type Fuser struct {
	mismatchThreshold float64
	trendWindow       int
}

// NewFuser builds a Fuser. Non-positive arguments select the documented
// defaults (threshold 0.6, window 5).
func NewFuser(mismatchThreshold float64, trendWindow int) *Fuser {
	if mismatchThreshold <= 0 {
		mismatchThreshold = defaultMismatchThreshold
	}
	if trendWindow <= 0 {
		trendWindow = defaultTrendWindow
	}
	return &Fuser{mismatchThreshold: mismatchThreshold, trendWindow: trendWindow}
}

// MismatchThreshold is the minimum facial confidence before a verbal/facial
// mismatch or a facial category override is honored.
func (f *Fuser) MismatchThreshold() float64 {
	return f.mismatchThreshold
}

// Fuse builds the per-turn context descriptor.
//
// Mismatch is the "says fine, face says otherwise" scenario: it fires only
// when the words are neutral, the face is confidently non-neutral, and the
// confidence clears the threshold, so low-confidence noise never flags it.
func (f *Fuser) Fuse(sig sentiment.Signal, snap emotion.Snapshot, history []emotion.Snapshot, recent []ChatMessage) FusedContext {
	mismatch := sig.Category == sentiment.CategoryNeutral &&
		snap.Dominant != emotion.Neutral &&
		snap.Confidence >= f.mismatchThreshold

	return FusedContext{
		Signal:   sig,
		Facial:   snap,
		Mismatch: mismatch,
		Trend:    f.trend(history),
		Recent:   recent,
	}
}

// trend reports the label dominating a strict majority of the last K
// snapshots, non-neutral labels only. It enriches generated prompts and never
// overrides the category decision.
func (f *Fuser) trend(history []emotion.Snapshot) emotion.Label {
	if len(history) == 0 {
		return ""
	}
	window := history
	if len(window) > f.trendWindow {
		window = window[len(window)-f.trendWindow:]
	}

	counts := make(map[emotion.Label]int, len(window))
	for _, snap := range window {
		counts[snap.Dominant]++
	}

	for _, label := range emotion.Labels() {
		if label == emotion.Neutral {
			continue
		}
		if counts[label]*2 > len(window) {
			return label
		}
	}
	return ""
}
