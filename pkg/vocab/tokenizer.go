package vocab

import (
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer splits text into the symbols a Vocabulary is built from.
// Implementations must be pure and deterministic.
type Tokenizer interface {
	// Name identifies the tokenizer when a vocabulary is persisted.
	Name() string
	// Split returns the ordered symbols of text.
	Split(text string) []string
	// Separator is placed between symbols when they are joined back into text.
	Separator() string
}

// Char is the character-level tokenizer: one symbol per rune.
type Char struct{}

func (Char) Name() string      { return "char" }
func (Char) Separator() string { return "" }

func (Char) Split(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

// Word splits on runs of whitespace.
type Word struct{}

func (Word) Name() string      { return "word" }
func (Word) Separator() string { return " " }

func (Word) Split(text string) []string {
	return strings.Fields(text)
}

// BPE uses a tiktoken byte-pair encoding; every BPE token's text is one symbol.
type BPE struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewBPE loads the named tiktoken encoding, e.g. "cl100k_base".
func NewBPE(encoding string) (*BPE, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading bpe encoding %q: %w", encoding, err)
	}
	return &BPE{encoding: encoding, enc: enc}, nil
}

func (b *BPE) Name() string      { return "bpe:" + b.encoding }
func (b *BPE) Separator() string { return "" }

func (b *BPE) Split(text string) []string {
	ids := b.enc.EncodeOrdinary(text)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.enc.Decode([]int{id}))
	}
	return out
}

// TokenizerByName resolves a persisted tokenizer name.
func TokenizerByName(name string) (Tokenizer, error) {
	switch {
	case name == "" || name == "char":
		return Char{}, nil
	case name == "word":
		return Word{}, nil
	case name == "bpe":
		return NewBPE("")
	case strings.HasPrefix(name, "bpe:"):
		return NewBPE(strings.TrimPrefix(name, "bpe:"))
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}
