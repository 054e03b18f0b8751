// Package rnn holds the sequence model: an Elman RNN whose per-step outputs
// and final hidden state are stacked along time and projected by fc1.
package rnn

import (
	"math/rand"

	"github.com/Doct0rWats0n/imdb-classification/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch reports parameters whose sizes disagree with the model.
var ErrShapeMismatch = errors.New("shape mismatch")

// Model maps one encoded sequence of length T to a (T+1 x 2*HDim) score
// matrix. Rows 0..T-1 come from the per-step outputs, row T from the final
// hidden state. Class scores are read from row T.
type Model struct {
	EDim, HDim int
	RNN        *Cell
	FC1        *Linear
}

// Trace is the forward state of one sequence kept for Backward.
type Trace struct {
	Cell *CellTrace
	C    *mat.Dense // (T+1 x HDim) stacked outputs and final hidden state
}

// Grads has one accumulator per parameter, in Params order.
type Grads struct {
	Wih, Whh, Bih, Bhh *mat.Dense
	Wfc, Bfc           *mat.Dense
}

func New(eDim, hDim int, rng *rand.Rand) (*Model, error) {
	if eDim <= 0 || hDim <= 0 {
		return nil, errors.Errorf("model dims must be > 0, got e_dim=%d h_dim=%d", eDim, hDim)
	}
	return &Model{
		EDim: eDim,
		HDim: hDim,
		RNN:  NewCell(eDim, hDim, rng),
		FC1:  NewLinear(hDim, 2*hDim, rng),
	}, nil
}

// Outputs is the width of every output row, 2*HDim.
func (m *Model) Outputs() int {
	return m.FC1.Out
}

// Params lists the trainable tensors; Grads.List uses the same order.
func (m *Model) Params() []*mat.Dense {
	return []*mat.Dense{m.RNN.Wih, m.RNN.Whh, m.RNN.Bih, m.RNN.Bhh, m.FC1.W, m.FC1.B}
}

func (m *Model) NewGrads() *Grads {
	return &Grads{
		Wih: utils.ZerosLike(m.RNN.Wih),
		Whh: utils.ZerosLike(m.RNN.Whh),
		Bih: utils.ZerosLike(m.RNN.Bih),
		Bhh: utils.ZerosLike(m.RNN.Bhh),
		Wfc: utils.ZerosLike(m.FC1.W),
		Bfc: utils.ZerosLike(m.FC1.B),
	}
}

func (g *Grads) List() []*mat.Dense {
	return []*mat.Dense{g.Wih, g.Whh, g.Bih, g.Bhh, g.Wfc, g.Bfc}
}

func (g *Grads) Zero() {
	for _, d := range g.List() {
		d.Zero()
	}
}

func (g *Grads) Scale(s float64) {
	for _, d := range g.List() {
		d.Scale(s, d)
	}
}

// Forward runs every sequence of the batch independently.
func (m *Model) Forward(batch [][]int) []*mat.Dense {
	out := make([]*mat.Dense, len(batch))
	for i, seq := range batch {
		out[i], _ = m.ForwardSeq(seq)
	}
	return out
}

// ForwardSeq returns the (T+1 x 2*HDim) output for one sequence.
func (m *Model) ForwardSeq(seq []int) (*mat.Dense, *Trace) {
	ct := m.RNN.Forward(seq)
	T := ct.Steps()

	// rows 1..T of Hs are the per-step outputs; the final hidden state
	// is appended once more as row T.
	c := mat.NewDense(T+1, m.HDim, nil)
	for t := 0; t < T; t++ {
		copy(c.RawRowView(t), ct.Hs.RawRowView(t+1))
	}
	copy(c.RawRowView(T), ct.Hs.RawRowView(T))

	return m.FC1.Forward(c), &Trace{Cell: ct, C: c}
}

// Scores returns the class scores of one sequence (row T of its output).
func (m *Model) Scores(seq []int) []float64 {
	y, _ := m.ForwardSeq(seq)
	return utils.LastRow(y).RawRowView(0)
}

// Backward accumulates parameter gradients for dY, the gradient of the
// loss with respect to the ForwardSeq output.
func (m *Model) Backward(tr *Trace, dY *mat.Dense, g *Grads) {
	dC := m.FC1.Backward(tr.C, dY, g.Wfc, g.Bfc)
	// dC rows line up with the cell's dH layout: row t-1 feeds h_t and
	// row T feeds the final hidden state.
	m.RNN.Backward(tr.Cell, dC, g)
}
