// Package model holds the recurrent sequence models that generation drives.
//
// A Model consumes one symbol id at a time, threads an explicit State and
// emits unnormalised logits over the vocabulary. Parameters are read-only
// once a model is built, so one Model can serve concurrent callers as long
// as each caller keeps its own State.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"charlm/pkg/lmerr"
)

// State is the hidden state carried between steps. A nil State means the
// zero initial state.
type State interface {
	Clone() State
}

// Model is any recurrent language model that can be stepped.
type Model interface {
	Kind() string
	VocabSize() int
	// Step consumes one id and returns the next-symbol logits and new state.
	// The passed state is not modified.
	Step(id int, s State) ([]float64, State, error)
	// StepBatch consumes ids in order and returns one logits vector per
	// position plus the final state. It matches repeated Step calls exactly.
	StepBatch(ids []int, s State) ([][]float64, State, error)
}

// Stepper is the part of Model that Run builds StepBatch from.
type Stepper interface {
	Step(id int, s State) ([]float64, State, error)
}

// Run feeds ids through m one Step at a time.
func Run(m Stepper, ids []int, s State) ([][]float64, State, error) {
	out := make([][]float64, 0, len(ids))
	for _, id := range ids {
		logits, next, err := m.Step(id, s)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, logits)
		s = next
	}
	return out, s, nil
}

func checkID(id, vocabSize int) error {
	if id < 0 || id >= vocabSize {
		return fmt.Errorf("input id %d, vocabulary size %d: %w", id, vocabSize, lmerr.ErrOutOfRange)
	}
	return nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func randDense(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

// affine returns x·w + b for row vectors, with w and b stored as matrices.
func affine(x mat.Vector, w, b *mat.Dense) *mat.VecDense {
	var out mat.VecDense
	out.MulVec(w.T(), x)
	out.AddVec(&out, b.RowView(0))
	return &out
}

// addRow adds row id of w to v in place.
func addRow(v *mat.VecDense, w *mat.Dense, id int) {
	v.AddVec(v, w.RowView(id))
}

func apply(v *mat.VecDense, fn func(float64) float64) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, fn(v.AtVec(i)))
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func cloneVec(v *mat.VecDense) *mat.VecDense {
	return mat.VecDenseCopyOf(v)
}
