package emotion

import "fmt"

// Label identifies one of the fixed facial emotion categories shared by every
// component. The set is closed: vectors carrying any other key are rejected.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
	Neutral  Label = "neutral"
)

// Labels lists every valid label in a stable order.
func Labels() []Label {
	return []Label{Happy, Sad, Angry, Fear, Surprise, Disgust, Neutral}
}

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	switch l {
	case Happy, Sad, Angry, Fear, Surprise, Disgust, Neutral:
		return true
	}
	return false
}

// ParseLabel validates a raw string against the closed label set.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("emotion: unknown label %q", s)
	}
	return l, nil
}
