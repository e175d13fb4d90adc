package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize("The  Quick\tBrown\n\n  Fox  ")
	want := "the quick brown\n\nfox"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestLines(t *testing.T) {
	got := Lines("a b\n\n c \n")
	if !reflect.DeepEqual(got, []string{"a b", "c"}) {
		t.Fatalf("Lines = %q", got)
	}
}

func TestLoadAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte("Hello   World\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	text, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello world\n" {
		t.Fatalf("Load = %q", text)
	}
	if h := Hash(text); len(h) != 16 || h != Hash("hello world\n") {
		t.Fatalf("Hash = %q", h)
	}
	if Hash("a") == Hash("b") {
		t.Fatal("different texts share a hash")
	}
}
