package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"charlm/pkg/lmerr"
)

// Gate is one LSTM gate: pre = x·Wx + h·Wh + B.
type Gate struct {
	Wx *mat.Dense // vocab × hidden
	Wh *mat.Dense // hidden × hidden
	B  *mat.Dense // 1 × hidden
}

func (g Gate) pre(id int, h *mat.VecDense) *mat.VecDense {
	out := affine(h, g.Wh, g.B)
	addRow(out, g.Wx, id)
	return out
}

// LSTM is a single-layer long short-term memory network over one-hot inputs.
// Its state is the pair (h, c).
type LSTM struct {
	Input  Gate
	Forget Gate
	Output Gate
	Cell   Gate
	Why    *mat.Dense // hidden × vocab
	By     *mat.Dense // 1 × vocab
}

type lstmState struct {
	h, c *mat.VecDense
}

func (s *lstmState) Clone() State {
	return &lstmState{h: cloneVec(s.h), c: cloneVec(s.c)}
}

func newGate(rng *rand.Rand, vocabSize, hidden int, bias float64) Gate {
	b := make([]float64, hidden)
	for i := range b {
		b[i] = bias
	}
	return Gate{
		Wx: randDense(rng, vocabSize, hidden, 0.08),
		Wh: randDense(rng, hidden, hidden, 0.08),
		B:  mat.NewDense(1, hidden, b),
	}
}

// NewLSTM initialises an LSTM; the forget gate bias starts at 1.
func NewLSTM(rng *rand.Rand, vocabSize, hidden int) *LSTM {
	return &LSTM{
		Input:  newGate(rng, vocabSize, hidden, 0),
		Forget: newGate(rng, vocabSize, hidden, 1),
		Output: newGate(rng, vocabSize, hidden, 0),
		Cell:   newGate(rng, vocabSize, hidden, 0),
		Why:    randDense(rng, hidden, vocabSize, 1/math.Sqrt(float64(hidden))),
		By:     mat.NewDense(1, vocabSize, nil),
	}
}

func (m *LSTM) Kind() string { return "lstm" }

func (m *LSTM) VocabSize() int {
	r, _ := m.Input.Wx.Dims()
	return r
}

func (m *LSTM) Hidden() int {
	_, c := m.Input.Wx.Dims()
	return c
}

func (m *LSTM) Step(id int, s State) ([]float64, State, error) {
	if err := checkID(id, m.VocabSize()); err != nil {
		return nil, nil, err
	}
	h, c, err := m.state(s)
	if err != nil {
		return nil, nil, err
	}

	i := m.Input.pre(id, h)
	apply(i, sigmoid)
	f := m.Forget.pre(id, h)
	apply(f, sigmoid)
	o := m.Output.pre(id, h)
	apply(o, sigmoid)
	g := m.Cell.pre(id, h)
	apply(g, math.Tanh)

	var nc, ig mat.VecDense
	nc.MulElemVec(f, c)
	ig.MulElemVec(i, g)
	nc.AddVec(&nc, &ig)

	nh := mat.VecDenseCopyOf(&nc)
	apply(nh, math.Tanh)
	nh.MulElemVec(nh, o)

	logits := affine(nh, m.Why, m.By)
	return vecData(logits), &lstmState{h: nh, c: &nc}, nil
}

func (m *LSTM) StepBatch(ids []int, s State) ([][]float64, State, error) {
	return Run(m, ids, s)
}

func (m *LSTM) state(s State) (h, c *mat.VecDense, err error) {
	switch st := s.(type) {
	case nil:
		n := m.Hidden()
		return mat.NewVecDense(n, nil), mat.NewVecDense(n, nil), nil
	case *lstmState:
		return st.h, st.c, nil
	}
	return nil, nil, fmt.Errorf("lstm step: state %T: %w", s, lmerr.ErrInvalidArgument)
}
