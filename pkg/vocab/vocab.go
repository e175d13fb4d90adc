// Package vocab maps symbols to dense integer ids and back.
//
// A Vocabulary is built once from a corpus by frequency counting and is
// read-only afterwards, so it can be shared freely between goroutines.
// Id 0 is always reserved for Unk.
package vocab

import (
	"fmt"
	"sort"

	"charlm/pkg/lmerr"
)

// Unk is the symbol stored at UnkID.
const Unk = "<unk>"

// UnkID is the id every out-of-vocabulary symbol encodes to.
const UnkID = 0

// Vocabulary is an immutable bidirectional symbol/id mapping.
type Vocabulary struct {
	stoi map[string]int
	itos []string
	tok  Tokenizer
}

type buildOptions struct {
	maxSize int
}

// Option configures Build.
type Option func(*buildOptions)

// WithMaxSize caps the vocabulary at n ids, Unk included.
// The least frequent symbols are dropped first.
func WithMaxSize(n int) Option {
	return func(o *buildOptions) { o.maxSize = n }
}

// Build counts symbols across every string of corpus and assigns ids by
// descending frequency, ties broken by first appearance.
func Build(corpus []string, tok Tokenizer, opts ...Option) *Vocabulary {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	counts := make(map[string]int)
	var order []string
	for _, text := range corpus {
		for _, s := range tok.Split(text) {
			if s == Unk {
				continue
			}
			if _, seen := counts[s]; !seen {
				order = append(order, s)
			}
			counts[s]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if o.maxSize > 0 && len(order) > o.maxSize-1 {
		order = order[:max(0, o.maxSize-1)]
	}

	return newVocabulary(append([]string{Unk}, order...), tok)
}

func newVocabulary(itos []string, tok Tokenizer) *Vocabulary {
	stoi := make(map[string]int, len(itos))
	for id, s := range itos {
		stoi[s] = id
	}
	return &Vocabulary{stoi: stoi, itos: itos, tok: tok}
}

// Encode tokenizes text and maps every symbol to its id. Unknown symbols
// become UnkID; Encode never fails.
func (v *Vocabulary) Encode(text string) []int {
	symbols := v.tok.Split(text)
	ids := make([]int, len(symbols))
	for i, s := range symbols {
		if id, ok := v.stoi[s]; ok {
			ids[i] = id
		}
	}
	return ids
}

// Decode returns the symbol for id.
func (v *Vocabulary) Decode(id int) (string, error) {
	if id < 0 || id >= len(v.itos) {
		return "", fmt.Errorf("decode id %d, vocabulary size %d: %w", id, len(v.itos), lmerr.ErrOutOfRange)
	}
	return v.itos[id], nil
}

// DecodeAll decodes ids and joins them with the tokenizer separator.
func (v *Vocabulary) DecodeAll(ids []int) (string, error) {
	symbols := make([]string, len(ids))
	for i, id := range ids {
		s, err := v.Decode(id)
		if err != nil {
			return "", err
		}
		symbols[i] = s
	}
	return v.Join(symbols), nil
}

// Join concatenates symbols the way the tokenizer expects.
func (v *Vocabulary) Join(symbols []string) string {
	sep := v.tok.Separator()
	n := 0
	for _, s := range symbols {
		n += len(s) + len(sep)
	}
	buf := make([]byte, 0, n)
	for i, s := range symbols {
		if i > 0 {
			buf = append(buf, sep...)
		}
		buf = append(buf, s...)
	}
	return string(buf)
}

// ID looks up a single symbol.
func (v *Vocabulary) ID(symbol string) (int, bool) {
	id, ok := v.stoi[symbol]
	return id, ok
}

// Size is the number of ids, Unk included.
func (v *Vocabulary) Size() int {
	return len(v.itos)
}

// Symbols returns a copy of the id-ordered symbol table.
func (v *Vocabulary) Symbols() []string {
	return append([]string(nil), v.itos...)
}

func (v *Vocabulary) Tokenizer() Tokenizer {
	return v.tok
}

// UnkRate reports the fraction of ids in text that fall back to UnkID.
func (v *Vocabulary) UnkRate(text string) float64 {
	ids := v.Encode(text)
	if len(ids) == 0 {
		return 0
	}
	unk := 0
	for _, id := range ids {
		if id == UnkID {
			unk++
		}
	}
	return float64(unk) / float64(len(ids))
}
