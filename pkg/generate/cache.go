package generate

import (
	lru "github.com/hashicorp/golang-lru"

	"charlm/pkg/model"
)

// PrimeCache remembers the logits and state reached after feeding a seed,
// so repeated prompts skip re-priming. Entries are copied in and out; a
// cached state is never handed to two generations.
type PrimeCache struct {
	cache *lru.Cache
}

type primed struct {
	logits []float64
	state  model.State
}

// NewPrimeCache holds at most size seeds.
func NewPrimeCache(size int) (*PrimeCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PrimeCache{cache: c}, nil
}

func (p *PrimeCache) Len() int { return p.cache.Len() }

func (p *PrimeCache) get(seed string) (*genContext, bool) {
	v, ok := p.cache.Get(seed)
	if !ok {
		return nil, false
	}
	e := v.(primed)
	return &genContext{
		logits: append([]float64(nil), e.logits...),
		state:  cloneState(e.state),
	}, true
}

func (p *PrimeCache) add(seed string, ctx *genContext) {
	p.cache.Add(seed, primed{
		logits: append([]float64(nil), ctx.logits...),
		state:  cloneState(ctx.state),
	})
}

func cloneState(s model.State) model.State {
	if s == nil {
		return nil
	}
	return s.Clone()
}
