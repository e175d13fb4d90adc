// Package train fits a recurrent model to training windows with
// teacher forcing: at every position the loss is the cross-entropy of the
// predicted distribution against the true next symbol.
//
// The unrolled network is a gorgonia expression graph optimised with Adam;
// after every epoch the parameters are exported into a model.Model for
// validation and generation.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"charlm/pkg/generate"
	"charlm/pkg/lmerr"
	"charlm/pkg/model"
	"charlm/pkg/window"
)

// Config holds the model shape and optimisation settings of one training run.
type Config struct {
	Cell     string  `json:"cell"`
	Hidden   int     `json:"hidden"`
	Window   int     `json:"window"`
	Batch    int     `json:"batch"`
	Epochs   int     `json:"epochs"`
	LR       float64 `json:"lr"`
	Clip     float64 `json:"clip"`
	L2       float64 `json:"l2"`
	ValFrac  float64 `json:"val_frac"`
	Patience int     `json:"patience"`
	Seed     int64   `json:"seed"`
}

func (c Config) validate() error {
	switch {
	case c.Cell != "rnn" && c.Cell != "lstm":
		return fmt.Errorf("cell %q: %w", c.Cell, lmerr.ErrInvalidArgument)
	case c.Hidden < 1, c.Window < 1, c.Batch < 1, c.Epochs < 1:
		return fmt.Errorf("hidden=%d window=%d batch=%d epochs=%d must be positive: %w",
			c.Hidden, c.Window, c.Batch, c.Epochs, lmerr.ErrInvalidArgument)
	case !(c.LR > 0):
		return fmt.Errorf("learning rate %v: %w", c.LR, lmerr.ErrInvalidArgument)
	case c.ValFrac < 0 || c.ValFrac >= 1:
		return fmt.Errorf("validation fraction %v: %w", c.ValFrac, lmerr.ErrInvalidArgument)
	}
	return nil
}

// Result is the outcome of a training run.
type Result struct {
	// Model is the parameters with the lowest validation loss.
	Model       model.Model
	BestValLoss float64
	Metrics     Metrics
	EarlyStop   bool
}

type options struct {
	onEpoch func(EpochMetrics)
}

type Option func(*options)

// WithEpochHook is called after every completed epoch.
func WithEpochHook(fn func(EpochMetrics)) Option {
	return func(o *options) { o.onEpoch = fn }
}

// Train fits a fresh cfg.Cell model over windows. All windows must have
// length cfg.Window and ids below vocabSize.
func Train(ctx context.Context, windows []window.Window, vocabSize int, cfg Config, opts ...Option) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	trainS, valS := window.Split(windows, cfg.ValFrac)
	if len(trainS) == 0 {
		return nil, fmt.Errorf("no training windows: %w", lmerr.ErrInvalidArgument)
	}
	for _, w := range windows {
		if len(w.Input) != cfg.Window {
			return nil, fmt.Errorf("window length %d, configured %d: %w", len(w.Input), cfg.Window, lmerr.ErrInvalidArgument)
		}
		if err := checkIDs(w, vocabSize); err != nil {
			return nil, err
		}
	}
	batch := cfg.Batch
	if len(trainS) < batch {
		batch = len(trainS)
	}
	klog.InfoS("training", "cell", cfg.Cell, "train_windows", len(trainS), "val_windows", len(valS), "batch", batch)

	initial, err := model.New(cfg.Cell, cfg.Seed, vocabSize, cfg.Hidden)
	if err != nil {
		return nil, err
	}
	nn, err := unroll(initial, vocabSize, batch, cfg.Window)
	if err != nil {
		return nil, err
	}

	vm := gorgonia.NewTapeMachine(nn.g, gorgonia.BindDualValues(nn.cell.learnables()...))
	defer vm.Close()

	solverOpts := []gorgonia.SolverOpt{gorgonia.WithLearnRate(cfg.LR)}
	if cfg.Clip > 0 {
		solverOpts = append(solverOpts, gorgonia.WithClip(cfg.Clip))
	}
	if cfg.L2 > 0 {
		solverOpts = append(solverOpts, gorgonia.WithL2Reg(cfg.L2))
	}
	solver := gorgonia.NewAdamSolver(solverOpts...)

	rng := rand.New(rand.NewSource(cfg.Seed))
	res := &Result{BestValLoss: math.Inf(1)}
	sinceBest := 0

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		batches, err := window.Batches(rng, trainS, batch, true)
		if err != nil {
			return nil, err
		}

		var lossSum float64
		valid, skipped := 0, 0
		for _, b := range batches {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
			}
			loss, err := nn.run(vm, b)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				klog.Warningf("skipping batch with non-finite loss at epoch %d", epoch)
				skipped++
				vm.Reset()
				continue
			}
			if err := solver.Step(gorgonia.NodesToValueGrads(nn.cell.learnables())); err != nil {
				return nil, fmt.Errorf("solver step at epoch %d: %w", epoch, err)
			}
			vm.Reset()
			lossSum += loss
			valid++
		}
		if valid == 0 {
			return nil, fmt.Errorf("epoch %d: no batch produced a finite loss", epoch)
		}

		current := nn.cell.export()
		trainLoss := lossSum / float64(valid)
		valLoss := trainLoss
		if len(valS) > 0 {
			if valLoss, err = EvalLoss(current, valS); err != nil {
				return nil, err
			}
		}

		if valLoss < res.BestValLoss*0.999 || res.Model == nil {
			sinceBest = 0
		} else {
			sinceBest++
		}
		best := valLoss < res.BestValLoss || res.Model == nil
		if best {
			res.BestValLoss = valLoss
			res.Model = current
		}

		em := EpochMetrics{
			Epoch:      epoch,
			TrainLoss:  trainLoss,
			ValLoss:    valLoss,
			Perplexity: math.Exp(valLoss),
			Skipped:    skipped,
			Best:       best,
		}
		res.Metrics.Epochs = append(res.Metrics.Epochs, em)

		klog.V(1).InfoS("epoch", "epoch", epoch, "train", trainLoss, "val", valLoss, "ppl", em.Perplexity, "best", em.Best)
		if o.onEpoch != nil {
			o.onEpoch(em)
		}

		if cfg.Patience > 0 && sinceBest >= cfg.Patience {
			klog.InfoS("early stopping: no improvement in validation loss", "epoch", epoch, "patience", cfg.Patience)
			res.EarlyStop = true
			break
		}
	}
	return res, nil
}

// EvalLoss is the mean per-position cross-entropy of m over windows.
func EvalLoss(m model.Model, windows []window.Window) (float64, error) {
	if len(windows) == 0 {
		return 0, nil
	}
	var sum float64
	var n int
	for _, w := range windows {
		if err := checkIDs(w, m.VocabSize()); err != nil {
			return 0, err
		}
		seq, _, err := m.StepBatch(w.Input, nil)
		if err != nil {
			return 0, err
		}
		for i, logits := range seq {
			p := generate.Softmax(logits, 1)
			sum += -math.Log(math.Max(1e-12, p[w.Target[i]]))
			n++
		}
	}
	return sum / float64(n), nil
}

func checkIDs(w window.Window, vocabSize int) error {
	if len(w.Target) != len(w.Input) {
		return fmt.Errorf("window has %d inputs, %d targets: %w", len(w.Input), len(w.Target), lmerr.ErrInvalidArgument)
	}
	for i := range w.Input {
		for _, id := range [2]int{w.Input[i], w.Target[i]} {
			if id < 0 || id >= vocabSize {
				return fmt.Errorf("id %d not in [0, %d): %w", id, vocabSize, lmerr.ErrOutOfRange)
			}
		}
	}
	return nil
}

// unrolled is the training graph for fixed batch and window sizes.
type unrolled struct {
	g      *gorgonia.ExprGraph
	cell   cellGraph
	xs, ys []*gorgonia.Node
	xbuf   [][]float64
	ybuf   [][]float64
	cost   *gorgonia.Node
	vocab  int
	batch  int
}

func unroll(m model.Model, vocab, batch, steps int) (*unrolled, error) {
	g := gorgonia.NewGraph()
	cell, err := newCellGraph(g, m)
	if err != nil {
		return nil, err
	}
	n := &unrolled{g: g, cell: cell, vocab: vocab, batch: batch}

	state := cell.initState(g, batch)
	var total *gorgonia.Node
	for t := 0; t < steps; t++ {
		x := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batch, vocab), gorgonia.WithName(fmt.Sprintf("x%d", t)))
		y := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batch, vocab), gorgonia.WithName(fmt.Sprintf("y%d", t)))
		n.xs = append(n.xs, x)
		n.ys = append(n.ys, y)
		n.xbuf = append(n.xbuf, make([]float64, batch*vocab))
		n.ybuf = append(n.ybuf, make([]float64, batch*vocab))

		var logits *gorgonia.Node
		if logits, state, err = cell.step(x, state); err != nil {
			return nil, fmt.Errorf("building step %d: %w", t, err)
		}
		ll, err := logLikelihood(logits, y)
		if err != nil {
			return nil, fmt.Errorf("building loss %d: %w", t, err)
		}
		if total == nil {
			total = ll
		} else if total, err = gorgonia.Add(total, ll); err != nil {
			return nil, err
		}
	}

	mean, err := gorgonia.Div(total, gorgonia.NewConstant(float64(batch*steps)))
	if err != nil {
		return nil, err
	}
	if n.cost, err = gorgonia.Neg(mean); err != nil {
		return nil, err
	}
	if _, err := gorgonia.Grad(n.cost, cell.learnables()...); err != nil {
		return nil, fmt.Errorf("building gradients: %w", err)
	}
	return n, nil
}

// logLikelihood sums log p(target) over the batch; y is one-hot.
func logLikelihood(logits, y *gorgonia.Node) (*gorgonia.Node, error) {
	probs, err := gorgonia.SoftMax(logits)
	if err != nil {
		return nil, err
	}
	logp, err := gorgonia.Log(probs)
	if err != nil {
		return nil, err
	}
	picked, err := gorgonia.HadamardProd(logp, y)
	if err != nil {
		return nil, err
	}
	return gorgonia.Sum(picked)
}

// run binds one batch as one-hot inputs and targets and evaluates the graph.
func (n *unrolled) run(vm gorgonia.VM, b window.Batch) (float64, error) {
	for t := range n.xs {
		xb, yb := n.xbuf[t], n.ybuf[t]
		for i := range xb {
			xb[i], yb[i] = 0, 0
		}
		for row := 0; row < n.batch; row++ {
			xb[row*n.vocab+b.Inputs[row][t]] = 1
			yb[row*n.vocab+b.Targets[row][t]] = 1
		}
		if err := gorgonia.Let(n.xs[t], tensor.New(tensor.WithShape(n.batch, n.vocab), tensor.WithBacking(xb))); err != nil {
			return 0, err
		}
		if err := gorgonia.Let(n.ys[t], tensor.New(tensor.WithShape(n.batch, n.vocab), tensor.WithBacking(yb))); err != nil {
			return 0, err
		}
	}
	if err := vm.RunAll(); err != nil {
		return 0, err
	}
	return n.cost.Value().Data().(float64), nil
}
