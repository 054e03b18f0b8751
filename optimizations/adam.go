package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam keeps first and second moment estimates per parameter. A non-zero
// WeightDecay adds wd*p to the update (AdamW).
type Adam struct {
	LR                float64
	Beta1, Beta2, Eps float64
	WeightDecay       float64

	t    int
	m, v []*mat.Dense
}

func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }

// Steps is the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

func (a *Adam) Step(params, grads []*mat.Dense) {
	if len(params) != len(grads) {
		panic("adam: params/grads length mismatch")
	}
	if a.m == nil {
		a.m = zerosLike(params)
		a.v = zerosLike(params)
	}
	a.t++
	for k, p := range params {
		AdamUpdateInPlace(p, grads[k], a.m[k], a.v[k], a.t, a.LR, a.Beta1, a.Beta2, a.Eps, a.WeightDecay)
	}
}

// AdamUpdateInPlace applies one bias-corrected step:
// p -= lr * (mhat/(sqrt(vhat)+eps) + wd*p).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	checkShapes("adamUpdateInPlace", p, g)
	checkShapes("adamUpdateInPlace: m", p, m)
	checkShapes("adamUpdateInPlace: v", p, v)

	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	pr, pc := p.Dims()
	for i := 0; i < pr; i++ {
		prow, grow := p.RawRowView(i), g.RawRowView(i)
		mrow, vrow := m.RawRowView(i), v.RawRowView(i)
		for j := 0; j < pc; j++ {
			gij := grow[j]
			mrow[j] = beta1*mrow[j] + (1.0-beta1)*gij
			vrow[j] = beta2*vrow[j] + (1.0-beta2)*gij*gij
			mhat := mrow[j] * c1
			vhat := vrow[j] * c2
			prow[j] -= lr * (mhat/(math.Sqrt(vhat)+eps) + weightDecay*prow[j])
		}
	}
}
