// Package optimizations updates model parameters in place from their
// accumulated gradients.
package optimizations

import (
	"strings"

	"github.com/Doct0rWats0n/imdb-classification/params"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Optimizer applies one update step. params and grads are parallel slices
// and must keep the same order and shapes across calls.
type Optimizer interface {
	Step(params, grads []*mat.Dense)
	SetLearningRate(lr float64)
}

// FromConfig builds the optimizer named by cfg.Optimizer.
func FromConfig(cfg params.Config) (Optimizer, error) {
	switch strings.ToLower(cfg.Optimizer) {
	case "", "sgd":
		return &SGD{
			LR:          cfg.LearningRate,
			Momentum:    cfg.Momentum,
			WeightDecay: cfg.WeightDecay,
		}, nil
	case "adam", "adamw":
		return &Adam{
			LR:          cfg.LearningRate,
			Beta1:       cfg.AdamBeta1,
			Beta2:       cfg.AdamBeta2,
			Eps:         cfg.AdamEps,
			WeightDecay: cfg.WeightDecay,
		}, nil
	}
	return nil, errors.Wrapf(params.ErrInvalidConfig, "unknown optimizer %q", cfg.Optimizer)
}

func checkShapes(name string, p, g *mat.Dense) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic(name + ": grad shape mismatch")
	}
}

func zerosLike(ps []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		r, c := p.Dims()
		out[i] = mat.NewDense(r, c, nil)
	}
	return out
}
