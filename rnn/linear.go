package rnn

import (
	"math/rand"

	"github.com/Doct0rWats0n/imdb-classification/utils"
	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer applied to every row: y = x W^T + b.
type Linear struct {
	In, Out int
	W       *mat.Dense // (Out x In)
	B       *mat.Dense // (1 x Out)
}

func NewLinear(in, out int, rng *rand.Rand) *Linear {
	return &Linear{
		In:  in,
		Out: out,
		W:   mat.NewDense(out, in, utils.RandomArray(rng, out*in, float64(in))),
		B:   mat.NewDense(1, out, nil),
	}
}

// Forward maps x (N x In) to (N x Out).
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	return utils.AddBias(utils.Dot(x, l.W.T()), l.B)
}

// Backward accumulates dW and dB for the input x and returns dX (N x In).
func (l *Linear) Backward(x, dY, dW, dB *mat.Dense) *mat.Dense {
	var gw mat.Dense
	gw.Mul(dY.T(), x)
	dW.Add(dW, &gw)
	utils.AddColSums(dB, dY)
	return utils.Dot(dY, l.W)
}
