package optimizations

import "gonum.org/v1/gonum/mat"

// SGD is stochastic gradient descent with classical momentum:
//
//	g' = g + wd*p
//	v  = mu*v + g'
//	p -= lr*v
//
// With Momentum 0 it is plain SGD.
type SGD struct {
	LR          float64
	Momentum    float64
	WeightDecay float64

	velocity []*mat.Dense
}

func (s *SGD) SetLearningRate(lr float64) { s.LR = lr }

func (s *SGD) Step(params, grads []*mat.Dense) {
	if len(params) != len(grads) {
		panic("sgd: params/grads length mismatch")
	}
	if s.Momentum != 0 && s.velocity == nil {
		s.velocity = zerosLike(params)
	}
	for k, p := range params {
		g := grads[k]
		checkShapes("sgd", p, g)
		pd := p.RawMatrix()
		gd := g.RawMatrix()
		var vd []float64
		if s.velocity != nil {
			vd = s.velocity[k].RawMatrix().Data
		}
		for i := 0; i < pd.Rows; i++ {
			prow := pd.Data[i*pd.Stride : i*pd.Stride+pd.Cols]
			grow := gd.Data[i*gd.Stride : i*gd.Stride+gd.Cols]
			for j := range prow {
				d := grow[j] + s.WeightDecay*prow[j]
				if vd != nil {
					idx := i*pd.Cols + j
					vd[idx] = s.Momentum*vd[idx] + d
					d = vd[idx]
				}
				prow[j] -= s.LR * d
			}
		}
	}
}
