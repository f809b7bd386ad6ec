package anchorsense

import "github.com/crimson-sun/anchorsense/internal/model"

// Sentiment labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Result is a classified text.
// This is the stable public type; internal representations may change
// without breaking consumers.
type Result struct {
	Text       string  `json:"text,omitempty"`
	Index      int     `json:"index"`      // position in the submitted batch
	Sentiment  string  `json:"sentiment"`  // positive, negative or neutral
	Confidence float64 `json:"confidence"` // in [0, 1]
	Method     string  `json:"method"`     // always "embedding"
}

// Anchors are the example phrases each class is recognised by.
type Anchors struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Neutral  []string `json:"neutral"`
}

func (a Anchors) toModel() model.AnchorSet {
	return model.AnchorSet{Positive: a.Positive, Negative: a.Negative, Neutral: a.Neutral}
}

func resultFromReview(r model.Review) Result {
	return Result{
		Text:       r.Text,
		Index:      r.Index,
		Sentiment:  r.Sentiment.String(),
		Confidence: r.Confidence,
		Method:     r.Method,
	}
}
