// Package anchorsense classifies review text as positive, negative or
// neutral by comparing its embedding with embedded anchor phrases at several
// similarity scales.
//
// Quick start with a local model:
//
//	a, err := anchorsense.New(anchorsense.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	res, _ := a.Classify(ctx, "Arrived broken and support never replied.")
//	fmt.Println(res.Sentiment, res.Confidence) // negative 0.71
//
// Anchor phrases are embedded once per distinct anchor set and reused. An
// Analyzer is safe for concurrent use; create one and share it.
package anchorsense
