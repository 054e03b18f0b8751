package utils

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix helpers shared by the model and the optimizers.
// Sequences are laid out one time step per row: (T x features).

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Mul(m, n)
	return o
}

// AddBias adds a (1 x c) bias row to every row of m.
func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != 1 || cb != c {
		panic("addBias: bias must be (1 x c)")
	}
	out := mat.NewDense(r, c, nil)
	b := bias.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.AddTo(out.RawRowView(i), m.RawRowView(i), b)
	}
	return out
}

// AddColSums accumulates the column sums of m into the (1 x c) row dst.
func AddColSums(dst, m *mat.Dense) {
	r, c := m.Dims()
	if dr, dc := dst.Dims(); dr != 1 || dc != c {
		panic("addColSums: dst must be (1 x c)")
	}
	row := dst.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(row, m.RawRowView(i))
	}
}

func LastRow(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	copy(out.RawRowView(0), m.RawRowView(r-1))
	return out
}

// ---------- Softmax / loss ----------

// ColVectorSoftmax applies softmax across the single column of a (r x 1) vector.
func ColVectorSoftmax(v *mat.Dense) *mat.Dense {
	r, c := v.Dims()
	if c != 1 {
		panic("ColVectorSoftmax expects a (r x 1) column vector")
	}
	out := mat.NewDense(r, 1, nil)
	mx := mat.Max(v)
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(v.At(i, 0) - mx)
		out.Set(i, 0, e)
		sum += e
	}
	out.Scale(1/sum, out)
	return out
}

// CrossEntropyWithIndex returns -log softmax(logits)[gold] and its gradient
// with respect to the logits. Panics when gold is outside the logits range.
func CrossEntropyWithIndex(logits *mat.Dense, gold int) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if c != 1 {
		panic("CrossEntropyWithIndex expects (r x 1) logits vector")
	}
	if gold < 0 || gold >= r {
		panic("CrossEntropyWithIndex: gold index out of range")
	}
	prob := ColVectorSoftmax(logits)
	loss := -math.Log(prob.At(gold, 0) + 1e-12)
	grad := mat.DenseCopyOf(prob)
	grad.Set(gold, 0, grad.At(gold, 0)-1.0)
	return loss, grad
}

func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}

// ---------- Init / norms ----------

// RandomArray draws size values from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func RandomArray(rng *rand.Rand, size int, fanIn float64) []float64 {
	bound := 1.0 / math.Sqrt(fanIn+1e-12)
	out := make([]float64, size)
	for i := range out {
		out[i] = -bound + 2*bound*rng.Float64()
	}
	return out
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// MatrixNorm is the Frobenius norm.
func MatrixNorm(m *mat.Dense) float64 {
	return mat.Norm(m, 2)
}

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := MatrixNorm(g)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}
