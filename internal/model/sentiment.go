package model

import (
	"encoding/json"
	"fmt"
)

// Sentiment is one of the three sentiment classes.
type Sentiment int

const (
	Positive Sentiment = iota
	Negative
	Neutral
)

// Sentiments lists the classes in canonical iteration order. Tie-breaking
// throughout the classifier follows this order.
var Sentiments = [3]Sentiment{Positive, Negative, Neutral}

func (s Sentiment) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	case Neutral:
		return "neutral"
	default:
		return fmt.Sprintf("Sentiment(%d)", int(s))
	}
}

// ParseSentiment converts "positive", "negative" or "neutral" to a Sentiment.
func ParseSentiment(s string) (Sentiment, error) {
	switch s {
	case "positive":
		return Positive, nil
	case "negative":
		return Negative, nil
	case "neutral":
		return Neutral, nil
	default:
		return 0, fmt.Errorf("unknown sentiment %q", s)
	}
}

func (s Sentiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Sentiment) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v, err := ParseSentiment(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
