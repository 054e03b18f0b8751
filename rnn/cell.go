package rnn

import (
	"math"
	"math/rand"

	"github.com/Doct0rWats0n/imdb-classification/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Cell is a single-layer Elman RNN with tanh:
//
//	h_t = tanh(W_ih x_t + b_ih + W_hh h_{t-1} + b_hh), h_0 = 0
//
// Inputs are symbol indices. Index k is fed as the one-hot vector with a 1
// at k mod In, so W_ih x_t is column (k mod In) of W_ih.
type Cell struct {
	In, Hidden int
	Wih        *mat.Dense // (Hidden x In)
	Whh        *mat.Dense // (Hidden x Hidden)
	Bih, Bhh   *mat.Dense // (1 x Hidden)
}

// CellTrace keeps what Backward needs from one Forward call.
type CellTrace struct {
	Cols []int      // one-hot column used at each step
	Hs   *mat.Dense // (T+1 x Hidden), row 0 is h_0, row t is h_t
}

// Steps is the sequence length T.
func (tr *CellTrace) Steps() int {
	return len(tr.Cols)
}

func NewCell(in, hidden int, rng *rand.Rand) *Cell {
	return &Cell{
		In:     in,
		Hidden: hidden,
		Wih:    mat.NewDense(hidden, in, utils.RandomArray(rng, hidden*in, float64(hidden))),
		Whh:    mat.NewDense(hidden, hidden, utils.RandomArray(rng, hidden*hidden, float64(hidden))),
		Bih:    mat.NewDense(1, hidden, nil),
		Bhh:    mat.NewDense(1, hidden, nil),
	}
}

func (c *Cell) column(k int) int {
	return ((k % c.In) + c.In) % c.In
}

// Forward runs the cell over seq. The returned trace holds every hidden
// state; a zero-length seq leaves only h_0.
func (c *Cell) Forward(seq []int) *CellTrace {
	T := len(seq)
	tr := &CellTrace{
		Cols: make([]int, T),
		Hs:   mat.NewDense(T+1, c.Hidden, nil),
	}
	bias := make([]float64, c.Hidden)
	floats.AddTo(bias, c.Bih.RawRowView(0), c.Bhh.RawRowView(0))

	var rec mat.VecDense
	for t, k := range seq {
		col := c.column(k)
		tr.Cols[t] = col
		hPrev := tr.Hs.RowView(t)
		rec.MulVec(c.Whh, hPrev)

		h := tr.Hs.RawRowView(t + 1)
		for i := range h {
			h[i] = math.Tanh(c.Wih.At(i, col) + rec.AtVec(i) + bias[i])
		}
	}
	return tr
}

// Backward propagates dH through time. dH is (T+1 x Hidden): row t-1 is
// the gradient arriving at h_t from the per-step output, row T is the
// gradient arriving at the final hidden state. Parameter gradients are
// accumulated into g.
func (c *Cell) Backward(tr *CellTrace, dH *mat.Dense, g *Grads) {
	T := tr.Steps()
	if r, cc := dH.Dims(); r != T+1 || cc != c.Hidden {
		panic("rnn: cell gradient shape mismatch")
	}

	dhNext := mat.NewVecDense(c.Hidden, nil)
	dhNext.CopyVec(dH.RowView(T))

	dpre := mat.NewVecDense(c.Hidden, nil)
	bih := g.Bih.RawRowView(0)
	bhh := g.Bhh.RawRowView(0)
	for t := T - 1; t >= 0; t-- {
		h := tr.Hs.RawRowView(t + 1)
		step := dH.RawRowView(t)
		for i := 0; i < c.Hidden; i++ {
			dh := step[i] + dhNext.AtVec(i)
			dpre.SetVec(i, dh*(1-h[i]*h[i]))
		}

		col := tr.Cols[t]
		for i := 0; i < c.Hidden; i++ {
			g.Wih.Set(i, col, g.Wih.At(i, col)+dpre.AtVec(i))
		}
		g.Whh.RankOne(g.Whh, 1, dpre, tr.Hs.RowView(t))
		floats.Add(bih, dpre.RawVector().Data)
		floats.Add(bhh, dpre.RawVector().Data)

		dhNext.MulVec(c.Whh.T(), dpre)
	}
}
