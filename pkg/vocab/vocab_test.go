package vocab

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"charlm/pkg/lmerr"
)

func TestBuildOrdersByFrequencyThenFirstSeen(t *testing.T) {
	v := Build([]string{"ab a", "ba"}, Char{})

	// a:3, b:2, ' ':1
	want := []string{Unk, "a", "b", " "}
	if got := v.Symbols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("symbols = %q, want %q", got, want)
	}
}

func TestBuildTieBreakIsFirstSeen(t *testing.T) {
	v := Build([]string{"zyx", "xyz"}, Char{})
	want := []string{Unk, "z", "y", "x"}
	if got := v.Symbols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("symbols = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	corpus := []string{"the quick brown fox", "jumps over the lazy dog"}
	v := Build(corpus, Char{})
	for _, text := range corpus {
		for _, s := range (Char{}).Split(text) {
			ids := v.Encode(s)
			if len(ids) != 1 {
				t.Fatalf("encode %q: got %d ids", s, len(ids))
			}
			got, err := v.Decode(ids[0])
			if err != nil {
				t.Fatalf("decode %d: %v", ids[0], err)
			}
			if got != s {
				t.Errorf("decode(encode(%q)) = %q", s, got)
			}
		}
	}
}

func TestEncodeUnknownMapsToUnk(t *testing.T) {
	v := Build([]string{"abc"}, Char{})
	ids := v.Encode("axc")
	if ids[1] != UnkID {
		t.Fatalf("unknown symbol id = %d, want %d", ids[1], UnkID)
	}
	if len(ids) != 3 {
		t.Fatalf("encoded length = %d, want 3", len(ids))
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	v := Build([]string{"abc"}, Char{})
	for _, id := range []int{-1, v.Size(), v.Size() + 10} {
		if _, err := v.Decode(id); !errors.Is(err, lmerr.ErrOutOfRange) {
			t.Errorf("decode(%d) err = %v, want ErrOutOfRange", id, err)
		}
	}
}

func TestWithMaxSize(t *testing.T) {
	v := Build([]string{"aaabbc"}, Char{}, WithMaxSize(3))
	want := []string{Unk, "a", "b"}
	if got := v.Symbols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("symbols = %q, want %q", got, want)
	}
	if ids := v.Encode("c"); ids[0] != UnkID {
		t.Fatalf("dropped symbol encodes to %d", ids[0])
	}
}

func TestWordTokenizer(t *testing.T) {
	v := Build([]string{"the cat sat on the mat"}, Word{})
	if id, ok := v.ID("the"); !ok || id != 1 {
		t.Fatalf("id(the) = %d, %v", id, ok)
	}
	text, err := v.DecodeAll(v.Encode("the  mat"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "the mat" {
		t.Fatalf("DecodeAll = %q", text)
	}
}

func TestSaveLoad(t *testing.T) {
	v := Build([]string{"hello world"}, Char{})
	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := v.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Symbols(), v.Symbols()) {
		t.Fatalf("symbols differ: %q vs %q", got.Symbols(), v.Symbols())
	}
	if got.Tokenizer().Name() != "char" {
		t.Fatalf("tokenizer = %q", got.Tokenizer().Name())
	}
}

func TestUnkRate(t *testing.T) {
	v := Build([]string{"ab"}, Char{})
	if r := v.UnkRate("abxy"); r != 0.5 {
		t.Fatalf("unk rate = %v, want 0.5", r)
	}
}
