package sentiment

// Category is the prioritized text-derived emotional signal.
type Category string

const (
	CategoryCrisis  Category = "crisis"
	CategoryStress  Category = "stress"
	CategorySadness Category = "sadness"
	CategoryAnger   Category = "anger"
	CategoryFear    Category = "fear"
	CategoryNeutral Category = "neutral"
)

// Signal is the classifier output for one message. At most one category is
// reported per message; MatchedPhrase is the literal substring that triggered
// it, empty for neutral. Valence is the VADER compound polarity score, carried
// only to enrich generated-reply prompts.
type Signal struct {
	Category      Category
	MatchedPhrase string
	Valence       float64
}
