package anchors

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/crimson-sun/anchorsense/internal/model"
)

// Separators unlikely to appear in review text. Every field is written
// with its byte length first, so a separator inside a phrase cannot make
// two different sets hash alike.
const (
	sectionSep = "\x1d"
	phraseSep  = "\x1e"
)

// Key is a content hash of set. Each category is hashed as its name, its
// phrase count and its length-prefixed phrases in order, so moving a phrase
// between categories changes the key.
func Key(set model.AnchorSet) string {
	h := sha256.New()
	for _, s := range model.Sentiments {
		phrases := set.Phrases(s)
		h.Write([]byte(s.String() + sectionSep + strconv.Itoa(len(phrases)) + sectionSep))
		for _, p := range phrases {
			h.Write([]byte(strconv.Itoa(len(p)) + phraseSep + p + phraseSep))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
