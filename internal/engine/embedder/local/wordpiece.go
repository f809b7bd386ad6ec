package local

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSeqLen caps a tokenized sequence, including [CLS] and [SEP].
const DefaultMaxSeqLen = 128

// maxWordRunes is the longest word WordPiece will try to split.
const maxWordRunes = 200

// wordpiece is a BERT uncased tokenizer over a vocab.txt vocabulary.
// Token IDs are line numbers.
type wordpiece struct {
	ids       map[string]int64
	unk       int64
	cls       int64
	sep       int64
	maxSeqLen int
}

func loadWordpiece(path string, maxSeqLen int) (*wordpiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	ids := make(map[string]int64, 32000)
	sc := bufio.NewScanner(f)
	var n int64
	for sc.Scan() {
		ids[sc.Text()] = n
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	return newWordpiece(ids, maxSeqLen)
}

func newWordpiece(ids map[string]int64, maxSeqLen int) (*wordpiece, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("vocab: empty vocabulary")
	}
	if maxSeqLen < 3 {
		return nil, fmt.Errorf("vocab: max sequence length %d too small", maxSeqLen)
	}
	wp := &wordpiece{ids: ids, maxSeqLen: maxSeqLen}
	for tok, dst := range map[string]*int64{"[UNK]": &wp.unk, "[CLS]": &wp.cls, "[SEP]": &wp.sep} {
		id, ok := ids[tok]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", tok)
		}
		*dst = id
	}
	return wp, nil
}

// encode returns [CLS] ids... [SEP] for text, truncated to maxSeqLen.
func (wp *wordpiece) encode(text string) []int64 {
	pieces := wp.split(pretokenize(text))
	if limit := wp.maxSeqLen - 2; len(pieces) > limit {
		pieces = pieces[:limit]
	}
	out := make([]int64, 0, len(pieces)+2)
	out = append(out, wp.cls)
	for _, p := range pieces {
		id, ok := wp.ids[p]
		if !ok {
			id = wp.unk
		}
		out = append(out, id)
	}
	return append(out, wp.sep)
}

// split applies greedy longest-match-first WordPiece to each word. A word
// with no full decomposition becomes a single [UNK].
func (wp *wordpiece) split(words []string) []string {
	var out []string
	for _, w := range words {
		out = append(out, wp.splitWord(w)...)
	}
	return out
}

func (wp *wordpiece) splitWord(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{"[UNK]"}
	}
	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		var piece string
		for ; end > start; end-- {
			cand := string(runes[start:end])
			if start > 0 {
				cand = "##" + cand
			}
			if _, ok := wp.ids[cand]; ok {
				piece = cand
				break
			}
		}
		if piece == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, piece)
		start = end
	}
	return pieces
}

// batch is a padded, row-major token batch ready for inference.
type batch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	size          int64
	seqLen        int64
}

// encodeBatch pads every sequence to the longest one in texts.
func (wp *wordpiece) encodeBatch(texts []string) batch {
	seqs := make([][]int64, len(texts))
	var longest int
	for i, t := range texts {
		seqs[i] = wp.encode(t)
		longest = max(longest, len(seqs[i]))
	}

	b := batch{
		size:          int64(len(texts)),
		seqLen:        int64(longest),
		inputIDs:      make([]int64, len(texts)*longest),
		attentionMask: make([]int64, len(texts)*longest),
		tokenTypeIDs:  make([]int64, len(texts)*longest),
	}
	for i, seq := range seqs {
		row := i * longest
		copy(b.inputIDs[row:], seq)
		for j := range seq {
			b.attentionMask[row+j] = 1
		}
	}
	return b
}

// pretokenize lowercases, strips accents, drops control characters and
// splits on whitespace, punctuation and CJK ideographs.
func pretokenize(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
		case unicode.Is(unicode.Mn, r):
		case isSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isPunct treats every non-alphanumeric printable ASCII rune as punctuation,
// as BERT does.
func isPunct(r rune) bool {
	if r < 128 && r > 32 && !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') {
		return r != 127
	}
	return unicode.IsPunct(r)
}

var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF}, {0x3400, 0x4DBF}, {0x20000, 0x2A6DF}, {0x2A700, 0x2B73F},
	{0x2B740, 0x2B81F}, {0x2B820, 0x2CEAF}, {0xF900, 0xFAFF}, {0x2F800, 0x2FA1F},
}

func isCJK(r rune) bool {
	for _, rg := range cjkRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}
