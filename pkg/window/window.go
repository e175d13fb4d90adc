// Package window slices encoded text into teacher-forced training windows.
package window

import (
	"fmt"
	"math/rand"

	"charlm/pkg/lmerr"
	"charlm/pkg/vocab"
)

// Window is one training example: Target is Input shifted one position
// forward in the source sequence.
type Window struct {
	Input  []int
	Target []int
}

// Batch groups windows of equal length for one optimizer step.
type Batch struct {
	Inputs  [][]int
	Targets [][]int
}

func (b Batch) Len() int { return len(b.Inputs) }

// Make returns every window of length size over ids, in increasing start
// position. A sequence shorter than size+1 yields no windows.
func Make(ids []int, size int) ([]Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size %d: %w", size, lmerr.ErrInvalidArgument)
	}
	n := len(ids) - size
	if n <= 0 {
		return nil, nil
	}
	out := make([]Window, 0, n)
	for start := 0; start < n; start++ {
		in := make([]int, size)
		tgt := make([]int, size)
		copy(in, ids[start:start+size])
		copy(tgt, ids[start+1:start+size+1])
		out = append(out, Window{Input: in, Target: tgt})
	}
	return out, nil
}

// FromTexts encodes every text on its own and concatenates the windows,
// so no window crosses a text boundary. Texts that are too short are skipped.
func FromTexts(v *vocab.Vocabulary, texts []string, size int) ([]Window, error) {
	var out []Window
	for _, text := range texts {
		ws, err := Make(v.Encode(text), size)
		if err != nil {
			return nil, err
		}
		out = append(out, ws...)
	}
	return out, nil
}

// Split holds back the trailing valFrac of ws for validation.
func Split(ws []Window, valFrac float64) (train, val []Window) {
	if valFrac <= 0 {
		return ws, nil
	}
	if valFrac >= 1 {
		return nil, ws
	}
	cut := int(float64(len(ws)) * (1 - valFrac))
	return ws[:cut], ws[cut:]
}

// Shuffle permutes a in place with rng.
func Shuffle[T any](rng *rand.Rand, a []T) {
	rng.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
}

// Batches shuffles a copy of ws and groups it into batches of batchSize.
// With dropLast the trailing partial batch is discarded.
func Batches(rng *rand.Rand, ws []Window, batchSize int, dropLast bool) ([]Batch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size %d: %w", batchSize, lmerr.ErrInvalidArgument)
	}
	shuffled := append([]Window(nil), ws...)
	if rng != nil {
		Shuffle(rng, shuffled)
	}

	var batches []Batch
	for i := 0; i < len(shuffled); i += batchSize {
		j := i + batchSize
		if j > len(shuffled) {
			if dropLast {
				break
			}
			j = len(shuffled)
		}
		b := Batch{
			Inputs:  make([][]int, 0, j-i),
			Targets: make([][]int, 0, j-i),
		}
		for _, w := range shuffled[i:j] {
			b.Inputs = append(b.Inputs, w.Input)
			b.Targets = append(b.Targets, w.Target)
		}
		batches = append(batches, b)
	}
	return batches, nil
}
