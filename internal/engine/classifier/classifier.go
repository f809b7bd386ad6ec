package classifier

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/crimson-sun/anchorsense/internal/model"
)

var (
	// ErrNotInitialized is returned when Classify is called without anchor
	// embeddings. Callers must obtain them from the anchor cache first.
	ErrNotInitialized = errors.New("classifier: anchor embeddings not initialized")

	// ErrDimensionMismatch is returned when the query and an anchor vector
	// differ in length.
	ErrDimensionMismatch = errors.New("classifier: embedding dimension mismatch")

	// ErrNonFinite is returned when the query or an anchor vector holds a
	// NaN or infinite component.
	ErrNonFinite = errors.New("classifier: embedding has a non-finite component")
)

// DefaultScales are the analysis scales. Each scale s weights anchors by
// max(0, sim)^(2s), so larger scales let the strongest matches dominate.
var DefaultScales = []float64{0.5, 1.0, 2.0}

// Tunable hyperparameters. The values are empirical and must be kept as-is
// for output compatibility with existing results.
const (
	// Adaptive threshold: BaseThreshold + ThresholdSpread*(1-range).
	BaseThreshold   = 0.02
	ThresholdSpread = 0.05

	// Ambiguous triples fall back to neutral with max(AmbiguousFloor, avg*AmbiguousFactor).
	AmbiguousFloor  = 0.1
	AmbiguousFactor = 0.5

	// A neutral winner above avg*NeutralBoostRatio gets min(NeutralBoostCap, conf*NeutralBoost).
	NeutralBoostRatio = 1.1
	NeutralBoost      = 1.2
	NeutralBoostCap   = 0.9

	// A non-neutral winner less than WeakMargin above neutral gets conf*WeakPenalty.
	WeakMargin  = 0.03
	WeakPenalty = 0.8

	// Per-scale confidence components.
	SeparationWeight  = 0.4
	SeparationScale   = 5.0
	ConsistencyWeight = 0.3
	ConsistencyScale  = 3.0
	AbsoluteWeight    = 0.3

	// Ensemble confidence components.
	VoteWeight           = 0.4
	MeanConfidenceWeight = 0.4
	AgreementWeight      = 0.2
)

// Classifier scores an embedding against pre-embedded anchor phrases at
// several scales and combines the per-scale decisions by weighted voting.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	scales []float64
}

// New creates a Classifier using DefaultScales.
func New() *Classifier {
	return &Classifier{scales: DefaultScales}
}

// Classify returns the ensemble label and confidence for the given embedding.
func (c *Classifier) Classify(vector model.Vector, anchors *model.AnchorEmbeddings) (model.Result, error) {
	_, res, err := c.Analyze(vector, anchors)
	return res, err
}

// Analyze is Classify that also returns the per-scale results, in scale order.
func (c *Classifier) Analyze(vector model.Vector, anchors *model.AnchorEmbeddings) ([]model.ScaleResult, model.Result, error) {
	if anchors.Empty() {
		return nil, model.Result{}, ErrNotInitialized
	}
	if err := checkDimensions(vector, anchors); err != nil {
		return nil, model.Result{}, err
	}

	results := make([]model.ScaleResult, 0, len(c.scales))
	for _, scale := range c.scales {
		sims := similarities(vector, anchors, scale)
		label, conf := classifyTriple(sims)
		results = append(results, model.ScaleResult{
			Scale:        scale,
			Label:        label,
			Confidence:   conf,
			Similarities: sims,
		})
	}
	return results, ensemble(results), nil
}

func checkDimensions(vector model.Vector, anchors *model.AnchorEmbeddings) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
	}
	if i := nonFinite(vector); i >= 0 {
		return fmt.Errorf("%w: query component %d is %v", ErrNonFinite, i, vector[i])
	}
	for _, s := range model.Sentiments {
		for i, v := range anchors.Vectors(s) {
			if len(v) != len(vector) {
				return fmt.Errorf("%w: query has %d dims, %s anchor %d has %d",
					ErrDimensionMismatch, len(vector), s, i, len(v))
			}
			if j := nonFinite(v); j >= 0 {
				return fmt.Errorf("%w: %s anchor %d component %d is %v", ErrNonFinite, s, i, j, v[j])
			}
		}
	}
	return nil
}

// nonFinite returns the index of the first NaN or infinite component, or -1.
func nonFinite(v model.Vector) int {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}

func similarities(vector model.Vector, anchors *model.AnchorEmbeddings, scale float64) model.SimilarityTriple {
	return model.SimilarityTriple{
		Positive: scaledSimilarity(vector, anchors.Positive, scale),
		Negative: scaledSimilarity(vector, anchors.Negative, scale),
		Neutral:  scaledSimilarity(vector, anchors.Neutral, scale),
	}
}

// scaledSimilarity is the weighted mean of the cosine similarities against
// each anchor, weighting each by max(0, sim)^(2*scale). Returns 0 when every
// similarity is <= 0 or there are no anchors.
func scaledSimilarity(vector model.Vector, anchors []model.Vector, scale float64) float64 {
	var weighted, total float64
	for _, a := range anchors {
		sim := cosineSimilarity(vector, a)
		w := math.Pow(math.Max(0, sim), scale*2)
		weighted += sim * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

type rankedScore struct {
	label model.Sentiment
	score float64
}

// rank orders the classes by descending score. Equal scores keep the
// canonical positive, negative, neutral order.
func rank(t model.SimilarityTriple) [3]rankedScore {
	r := [3]rankedScore{
		{model.Positive, t.Positive},
		{model.Negative, t.Negative},
		{model.Neutral, t.Neutral},
	}
	slices.SortStableFunc(r[:], func(a, b rankedScore) int {
		return cmp.Compare(b.score, a.score)
	})
	return r
}

// classifyTriple applies the adaptive threshold to one similarity triple.
func classifyTriple(t model.SimilarityTriple) (model.Sentiment, float64) {
	r := rank(t)
	top, second := r[0], r[1]
	avg := (t.Positive + t.Negative + t.Neutral) / 3
	spread := top.score - r[2].score

	threshold := BaseThreshold + ThresholdSpread*(1-spread)
	if top.score-second.score < threshold {
		return model.Neutral, math.Max(AmbiguousFloor, avg*AmbiguousFactor)
	}

	if top.label == model.Neutral && top.score > avg*NeutralBoostRatio {
		return model.Neutral, math.Min(NeutralBoostCap, enhancedConfidence(t)*NeutralBoost)
	}

	if top.label != model.Neutral && top.score-t.Neutral < WeakMargin {
		return top.label, enhancedConfidence(t) * WeakPenalty
	}

	return top.label, enhancedConfidence(t)
}

// enhancedConfidence combines top-two separation, score dispersion and the
// absolute top score into a value in [0, 1].
func enhancedConfidence(t model.SimilarityTriple) float64 {
	r := rank(t)
	scores := t.Scores()
	gap := r[0].score - r[1].score

	conf := SeparationWeight*math.Min(1, gap*SeparationScale) +
		ConsistencyWeight*math.Min(1, stdDev(scores[:])*ConsistencyScale) +
		AbsoluteWeight*r[0].score
	return clamp01(conf)
}

// ensemble combines per-scale results by confidence-weighted voting.
func ensemble(results []model.ScaleResult) model.Result {
	var votes [3]float64
	var total float64
	confs := make([]float64, len(results))
	for i, r := range results {
		votes[r.Label] += r.Confidence
		total += r.Confidence
		confs[i] = r.Confidence
	}
	if total == 0 {
		return model.Result{Label: model.Neutral, Confidence: 0}
	}
	for i := range votes {
		votes[i] /= total
	}

	// On an exact tie the later class in canonical order wins.
	winner := model.Positive
	for _, s := range model.Sentiments[1:] {
		if votes[s] >= votes[winner] {
			winner = s
		}
	}

	winVote := votes[winner]
	var others []float64
	for _, v := range votes {
		if v != winVote {
			others = append(others, v)
		}
	}
	var separation float64
	if len(others) > 0 {
		separation = winVote - mean(others)
	}

	conf := VoteWeight*separation +
		MeanConfidenceWeight*mean(confs) +
		AgreementWeight*(1-stdDev(confs))
	return model.Result{Label: winner, Confidence: clamp01(conf)}
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector has zero norm or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
