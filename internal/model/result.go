package model

// SimilarityTriple is an aggregate similarity score per class.
type SimilarityTriple struct {
	Positive float64
	Negative float64
	Neutral  float64
}

// Scores returns the three scores in canonical class order.
func (t SimilarityTriple) Scores() [3]float64 {
	return [3]float64{t.Positive, t.Negative, t.Neutral}
}

// ScaleResult is the classification produced at one analysis scale.
type ScaleResult struct {
	Scale        float64
	Label        Sentiment
	Confidence   float64
	Similarities SimilarityTriple
}

// Result is the final classification of one embedding.
type Result struct {
	Label      Sentiment
	Confidence float64 // in [0, 1]
}

// MethodEmbedding identifies results produced by anchor similarity.
const MethodEmbedding = "embedding"

// Review is a classified input text.
type Review struct {
	Text       string    `json:"text"`
	Index      int       `json:"index"` // position in the submitted batch
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"method"`
}
