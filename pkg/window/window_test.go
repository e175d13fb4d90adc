package window

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"charlm/pkg/lmerr"
	"charlm/pkg/vocab"
)

func TestMakeCoverage(t *testing.T) {
	ids := []int{5, 6, 7, 8, 9, 10, 11}
	for _, w := range []int{1, 2, 3, 6, 7, 8} {
		ws, err := Make(ids, w)
		if err != nil {
			t.Fatalf("w=%d: %v", w, err)
		}
		want := max(0, len(ids)-w)
		if len(ws) != want {
			t.Fatalf("w=%d: %d windows, want %d", w, len(ws), want)
		}
		for k, win := range ws {
			if len(win.Input) != w || len(win.Target) != w {
				t.Fatalf("w=%d window %d: lengths %d/%d", w, k, len(win.Input), len(win.Target))
			}
			for i := 0; i < w-1; i++ {
				if win.Target[i] != win.Input[i+1] {
					t.Errorf("w=%d window %d: target[%d]=%d input[%d]=%d", w, k, i, win.Target[i], i+1, win.Input[i+1])
				}
			}
			if win.Target[w-1] != ids[k+w] {
				t.Errorf("w=%d window %d: last target %d, want %d", w, k, win.Target[w-1], ids[k+w])
			}
			if k+1 < len(ws) && !reflect.DeepEqual(ws[k+1].Input[:w-1], win.Input[1:]) {
				t.Errorf("w=%d windows %d and %d do not overlap by %d", w, k, k+1, w-1)
			}
		}
	}
}

func TestMakeDoesNotMutateOrAlias(t *testing.T) {
	ids := []int{1, 2, 3, 4}
	ws, err := Make(ids, 2)
	if err != nil {
		t.Fatal(err)
	}
	ws[0].Input[0] = 99
	if !reflect.DeepEqual(ids, []int{1, 2, 3, 4}) {
		t.Fatalf("source mutated: %v", ids)
	}
}

func TestMakeInvalidSize(t *testing.T) {
	if _, err := Make([]int{1, 2, 3}, 0); !errors.Is(err, lmerr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFromTextsDoesNotStraddle(t *testing.T) {
	v := vocab.Build([]string{"abc", "xyz"}, vocab.Char{})
	ws, err := FromTexts(v, []string{"abc", "xy", "xyz"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	// "abc" -> 1 window, "xy" -> 0, "xyz" -> 1
	if len(ws) != 2 {
		t.Fatalf("got %d windows, want 2", len(ws))
	}
	want := v.Encode("xy")
	if !reflect.DeepEqual(ws[1].Input, want) {
		t.Fatalf("second window input %v, want %v", ws[1].Input, want)
	}
}

func TestSplit(t *testing.T) {
	ws := make([]Window, 10)
	train, val := Split(ws, 0.2)
	if len(train) != 8 || len(val) != 2 {
		t.Fatalf("split = %d/%d", len(train), len(val))
	}
}

func TestBatches(t *testing.T) {
	ws, err := Make([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))

	full, err := Batches(rng, ws, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 2 {
		t.Fatalf("dropLast: %d batches, want 2", len(full))
	}
	all, err := Batches(rng, ws, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Len() != 2 {
		t.Fatalf("keep last: %d batches", len(all))
	}

	// Shuffling keeps each input paired with its own target.
	for _, b := range all {
		for i := range b.Inputs {
			if b.Targets[i][0] != b.Inputs[i][1] {
				t.Fatalf("input %v paired with target %v", b.Inputs[i], b.Targets[i])
			}
		}
	}
}

func TestBatchesDeterministicWithSeed(t *testing.T) {
	ws, _ := Make([]int{0, 1, 2, 3, 4, 5, 6, 7}, 2)
	a, _ := Batches(rand.New(rand.NewSource(7)), ws, 2, false)
	b, _ := Batches(rand.New(rand.NewSource(7)), ws, 2, false)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different batches")
	}
}
