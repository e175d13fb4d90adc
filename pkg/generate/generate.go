// Package generate extends a seed text one symbol at a time by driving a
// trained model. GenerateGreedy always takes the most likely symbol;
// GenerateSampled draws from a temperature-scaled distribution.
package generate

import (
	"fmt"
	"math"

	"charlm/pkg/lmerr"
	"charlm/pkg/model"
	"charlm/pkg/vocab"
)

// GenerateGreedy appends length arg-max symbols to seed. Arg-max decoding
// settles into short repeating cycles on most models; that is left as is.
func GenerateGreedy(m model.Model, v *vocab.Vocabulary, seed string, length int) (string, error) {
	g := Generator{Model: m, Vocab: v}
	return g.Greedy(seed, length)
}

// GenerateSampled appends length symbols to seed, each drawn from
// softmax(logits/temperature) using rng. A fixed rng seed makes the output
// reproducible.
func GenerateSampled(m model.Model, v *vocab.Vocabulary, seed string, length int, temperature float64, rng Rand) (string, error) {
	g := Generator{Model: m, Vocab: v}
	return g.Sampled(seed, length, temperature, rng)
}

// Generator bundles a model and vocabulary with an optional priming cache.
// It is safe for concurrent use when its Model is.
type Generator struct {
	Model model.Model
	Vocab *vocab.Vocabulary
	Cache *PrimeCache
}

func (g *Generator) Greedy(seed string, length int) (string, error) {
	return g.run(seed, length, ArgMax)
}

func (g *Generator) Sampled(seed string, length int, temperature float64, rng Rand) (string, error) {
	if !(temperature > 0) {
		return "", fmt.Errorf("temperature %v: %w", temperature, lmerr.ErrInvalidArgument)
	}
	if rng == nil {
		return "", fmt.Errorf("nil random source: %w", lmerr.ErrInvalidArgument)
	}
	return g.run(seed, length, func(logits []float64) int {
		return Categorical(rng, Softmax(logits, temperature))
	})
}

// genContext is the in-flight state of one generation call.
type genContext struct {
	symbols []string
	state   model.State
	logits  []float64
}

func (g *Generator) run(seed string, length int, pick func([]float64) int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length %d: %w", length, lmerr.ErrInvalidArgument)
	}
	if seed == "" {
		return "", fmt.Errorf("empty seed: %w", lmerr.ErrInvalidArgument)
	}
	if g.Model.VocabSize() != g.Vocab.Size() {
		return "", fmt.Errorf("model vocabulary %d, vocabulary %d: %w",
			g.Model.VocabSize(), g.Vocab.Size(), lmerr.ErrInvalidArgument)
	}

	ctx, err := g.prime(seed)
	if err != nil {
		return "", err
	}
	ctx.symbols = make([]string, 0, length)

	for i := 0; i < length; i++ {
		id := pick(ctx.logits)
		sym, err := g.Vocab.Decode(id)
		if err != nil {
			return "", err
		}
		ctx.symbols = append(ctx.symbols, sym)
		if i == length-1 {
			break
		}
		if ctx.logits, ctx.state, err = g.Model.Step(id, ctx.state); err != nil {
			return "", err
		}
	}

	out := seed
	if sep := g.Vocab.Tokenizer().Separator(); sep != "" {
		out += sep
	}
	return out + g.Vocab.Join(ctx.symbols), nil
}

func (g *Generator) prime(seed string) (*genContext, error) {
	if g.Cache != nil {
		if ctx, ok := g.Cache.get(seed); ok {
			return ctx, nil
		}
	}

	ids := g.Vocab.Encode(seed)
	if len(ids) == 0 {
		return nil, fmt.Errorf("seed %q has no symbols: %w", seed, lmerr.ErrInvalidArgument)
	}
	seq, state, err := g.Model.StepBatch(ids, nil)
	if err != nil {
		return nil, fmt.Errorf("priming on seed: %w", err)
	}
	ctx := &genContext{state: state, logits: seq[len(seq)-1]}
	for _, l := range ctx.logits {
		if math.IsNaN(l) {
			return nil, fmt.Errorf("priming on seed: model produced NaN logits")
		}
	}

	if g.Cache != nil {
		g.Cache.add(seed, ctx)
	}
	return ctx, nil
}
