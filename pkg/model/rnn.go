package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"charlm/pkg/lmerr"
)

// RNN is an Elman recurrent network over one-hot inputs:
//
//	h' = tanh(x·Wxh + h·Whh + Bh)
//	logits = h'·Why + By
//
// Because x is one-hot, x·Wxh is row id of Wxh.
type RNN struct {
	Wxh *mat.Dense // vocab × hidden
	Whh *mat.Dense // hidden × hidden
	Bh  *mat.Dense // 1 × hidden
	Why *mat.Dense // hidden × vocab
	By  *mat.Dense // 1 × vocab
}

type rnnState struct {
	h *mat.VecDense
}

func (s *rnnState) Clone() State { return &rnnState{h: cloneVec(s.h)} }

// NewRNN initialises an RNN with uniform weights scaled by fan-in.
func NewRNN(rng *rand.Rand, vocabSize, hidden int) *RNN {
	return &RNN{
		Wxh: randDense(rng, vocabSize, hidden, 0.08),
		Whh: randDense(rng, hidden, hidden, 1/math.Sqrt(float64(hidden))),
		Bh:  mat.NewDense(1, hidden, nil),
		Why: randDense(rng, hidden, vocabSize, 1/math.Sqrt(float64(hidden))),
		By:  mat.NewDense(1, vocabSize, nil),
	}
}

func (m *RNN) Kind() string { return "rnn" }

func (m *RNN) VocabSize() int {
	r, _ := m.Wxh.Dims()
	return r
}

func (m *RNN) Hidden() int {
	_, c := m.Wxh.Dims()
	return c
}

func (m *RNN) Step(id int, s State) ([]float64, State, error) {
	if err := checkID(id, m.VocabSize()); err != nil {
		return nil, nil, err
	}
	h, err := m.hidden(s)
	if err != nil {
		return nil, nil, err
	}

	next := affine(h, m.Whh, m.Bh)
	addRow(next, m.Wxh, id)
	apply(next, math.Tanh)

	logits := affine(next, m.Why, m.By)
	return vecData(logits), &rnnState{h: next}, nil
}

func (m *RNN) StepBatch(ids []int, s State) ([][]float64, State, error) {
	return Run(m, ids, s)
}

func (m *RNN) hidden(s State) (*mat.VecDense, error) {
	switch st := s.(type) {
	case nil:
		return mat.NewVecDense(m.Hidden(), nil), nil
	case *rnnState:
		return st.h, nil
	}
	return nil, fmt.Errorf("rnn step: state %T: %w", s, lmerr.ErrInvalidArgument)
}
