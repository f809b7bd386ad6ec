package model

// Vector is an embedding produced by an embedding model. All vectors compared
// against each other must share the same dimensionality.
type Vector []float32

// AnchorSet holds the hand-authored example phrases for each class.
type AnchorSet struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Neutral  []string `json:"neutral"`
}

// Phrases returns the phrases for one class.
func (a AnchorSet) Phrases(s Sentiment) []string {
	switch s {
	case Positive:
		return a.Positive
	case Negative:
		return a.Negative
	default:
		return a.Neutral
	}
}

// Len returns the total number of phrases across all classes.
func (a AnchorSet) Len() int {
	return len(a.Positive) + len(a.Negative) + len(a.Neutral)
}

// AnchorEmbeddings holds one vector per anchor phrase, in the same order and
// with the same cardinality as the AnchorSet it was derived from.
// Treat as immutable once built.
type AnchorEmbeddings struct {
	Positive []Vector `json:"positive"`
	Negative []Vector `json:"negative"`
	Neutral  []Vector `json:"neutral"`
}

// Vectors returns the anchor vectors for one class.
func (a *AnchorEmbeddings) Vectors(s Sentiment) []Vector {
	switch s {
	case Positive:
		return a.Positive
	case Negative:
		return a.Negative
	default:
		return a.Neutral
	}
}

// Empty reports whether no class has any anchor vector.
func (a *AnchorEmbeddings) Empty() bool {
	return a == nil || len(a.Positive)+len(a.Negative)+len(a.Neutral) == 0
}

// Matches reports whether a holds exactly one vector per phrase of set.
func (a *AnchorEmbeddings) Matches(set AnchorSet) bool {
	return a != nil &&
		len(a.Positive) == len(set.Positive) &&
		len(a.Negative) == len(set.Negative) &&
		len(a.Neutral) == len(set.Neutral)
}
