package train

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"charlm/pkg/model"
)

// cellGraph is the differentiable twin of a model.Model: the same parameters
// laid out as gorgonia nodes, stepped over one-hot batches.
type cellGraph interface {
	learnables() gorgonia.Nodes
	initState(g *gorgonia.ExprGraph, batch int) []*gorgonia.Node
	// step consumes x (batch × vocab, one-hot) and returns logits (batch × vocab).
	step(x *gorgonia.Node, state []*gorgonia.Node) (*gorgonia.Node, []*gorgonia.Node, error)
	export() model.Model
}

func newCellGraph(g *gorgonia.ExprGraph, m model.Model) (cellGraph, error) {
	switch mm := m.(type) {
	case *model.RNN:
		return &rnnGraph{
			hidden: mm.Hidden(),
			wxh:    paramNode(g, "wxh", mm.Wxh),
			whh:    paramNode(g, "whh", mm.Whh),
			bh:     paramNode(g, "bh", mm.Bh),
			why:    paramNode(g, "why", mm.Why),
			by:     paramNode(g, "by", mm.By),
		}, nil
	case *model.LSTM:
		return &lstmGraph{
			hidden: mm.Hidden(),
			in:     gateNodes(g, "i", mm.Input),
			forget: gateNodes(g, "f", mm.Forget),
			out:    gateNodes(g, "o", mm.Output),
			cell:   gateNodes(g, "c", mm.Cell),
			why:    paramNode(g, "why", mm.Why),
			by:     paramNode(g, "by", mm.By),
		}, nil
	}
	return nil, fmt.Errorf("no training graph for model %T", m)
}

func paramNode(g *gorgonia.ExprGraph, name string, d *mat.Dense) *gorgonia.Node {
	r, c := d.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, d.At(i, j))
		}
	}
	t := tensor.New(tensor.WithShape(r, c), tensor.WithBacking(data))
	return gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(r, c),
		gorgonia.WithName(name),
		gorgonia.WithValue(t),
	)
}

func denseOf(n *gorgonia.Node) *mat.Dense {
	shape := n.Shape()
	data := n.Value().Data().([]float64)
	return mat.NewDense(shape[0], shape[1], append([]float64(nil), data...))
}

func zeroState(g *gorgonia.ExprGraph, name string, batch, hidden int) *gorgonia.Node {
	return gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(batch, hidden),
		gorgonia.WithName(name),
		gorgonia.WithInit(gorgonia.Zeroes()),
	)
}

// affine computes x·w + b with b (1 × n) broadcast over the batch rows.
func affine(x, w, b *gorgonia.Node) (*gorgonia.Node, error) {
	xw, err := gorgonia.Mul(x, w)
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(xw, b, nil, []byte{0})
}

// recurrent computes x·wx + h·wh + b.
func recurrent(x, h, wx, wh, b *gorgonia.Node) (*gorgonia.Node, error) {
	xw, err := affine(x, wx, b)
	if err != nil {
		return nil, err
	}
	hw, err := gorgonia.Mul(h, wh)
	if err != nil {
		return nil, err
	}
	return gorgonia.Add(xw, hw)
}

type rnnGraph struct {
	hidden                int
	wxh, whh, bh, why, by *gorgonia.Node
}

func (r *rnnGraph) learnables() gorgonia.Nodes {
	return gorgonia.Nodes{r.wxh, r.whh, r.bh, r.why, r.by}
}

func (r *rnnGraph) initState(g *gorgonia.ExprGraph, batch int) []*gorgonia.Node {
	return []*gorgonia.Node{zeroState(g, "h0", batch, r.hidden)}
}

func (r *rnnGraph) step(x *gorgonia.Node, state []*gorgonia.Node) (*gorgonia.Node, []*gorgonia.Node, error) {
	pre, err := recurrent(x, state[0], r.wxh, r.whh, r.bh)
	if err != nil {
		return nil, nil, err
	}
	h, err := gorgonia.Tanh(pre)
	if err != nil {
		return nil, nil, err
	}
	logits, err := affine(h, r.why, r.by)
	if err != nil {
		return nil, nil, err
	}
	return logits, []*gorgonia.Node{h}, nil
}

func (r *rnnGraph) export() model.Model {
	return &model.RNN{
		Wxh: denseOf(r.wxh),
		Whh: denseOf(r.whh),
		Bh:  denseOf(r.bh),
		Why: denseOf(r.why),
		By:  denseOf(r.by),
	}
}

type gateGraph struct {
	wx, wh, b *gorgonia.Node
}

func gateNodes(g *gorgonia.ExprGraph, name string, gate model.Gate) gateGraph {
	return gateGraph{
		wx: paramNode(g, "wx_"+name, gate.Wx),
		wh: paramNode(g, "wh_"+name, gate.Wh),
		b:  paramNode(g, "b_"+name, gate.B),
	}
}

func (gg gateGraph) activate(x, h *gorgonia.Node, fn func(*gorgonia.Node) (*gorgonia.Node, error)) (*gorgonia.Node, error) {
	pre, err := recurrent(x, h, gg.wx, gg.wh, gg.b)
	if err != nil {
		return nil, err
	}
	return fn(pre)
}

func (gg gateGraph) export() model.Gate {
	return model.Gate{Wx: denseOf(gg.wx), Wh: denseOf(gg.wh), B: denseOf(gg.b)}
}

type lstmGraph struct {
	hidden                int
	in, forget, out, cell gateGraph
	why, by               *gorgonia.Node
}

func (l *lstmGraph) learnables() gorgonia.Nodes {
	var ns gorgonia.Nodes
	for _, gg := range []gateGraph{l.in, l.forget, l.out, l.cell} {
		ns = append(ns, gg.wx, gg.wh, gg.b)
	}
	return append(ns, l.why, l.by)
}

func (l *lstmGraph) initState(g *gorgonia.ExprGraph, batch int) []*gorgonia.Node {
	return []*gorgonia.Node{
		zeroState(g, "h0", batch, l.hidden),
		zeroState(g, "c0", batch, l.hidden),
	}
}

func (l *lstmGraph) step(x *gorgonia.Node, state []*gorgonia.Node) (*gorgonia.Node, []*gorgonia.Node, error) {
	h, c := state[0], state[1]

	i, err := l.in.activate(x, h, gorgonia.Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	f, err := l.forget.activate(x, h, gorgonia.Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	o, err := l.out.activate(x, h, gorgonia.Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	g, err := l.cell.activate(x, h, gorgonia.Tanh)
	if err != nil {
		return nil, nil, err
	}

	fc, err := gorgonia.HadamardProd(f, c)
	if err != nil {
		return nil, nil, err
	}
	ig, err := gorgonia.HadamardProd(i, g)
	if err != nil {
		return nil, nil, err
	}
	nc, err := gorgonia.Add(fc, ig)
	if err != nil {
		return nil, nil, err
	}
	tc, err := gorgonia.Tanh(nc)
	if err != nil {
		return nil, nil, err
	}
	nh, err := gorgonia.HadamardProd(o, tc)
	if err != nil {
		return nil, nil, err
	}

	logits, err := affine(nh, l.why, l.by)
	if err != nil {
		return nil, nil, err
	}
	return logits, []*gorgonia.Node{nh, nc}, nil
}

func (l *lstmGraph) export() model.Model {
	return &model.LSTM{
		Input:  l.in.export(),
		Forget: l.forget.export(),
		Output: l.out.export(),
		Cell:   l.cell.export(),
		Why:    denseOf(l.why),
		By:     denseOf(l.by),
	}
}
