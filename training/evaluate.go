package training

import (
	"github.com/Doct0rWats0n/imdb-classification/IO"
	"github.com/Doct0rWats0n/imdb-classification/rnn"
	"github.com/Doct0rWats0n/imdb-classification/utils"
	"github.com/pkg/errors"
)

// Result summarises one pass over held-out data.
type Result struct {
	Samples  int
	Correct  int
	Skipped  int     // samples whose label the model was never trained on
	Loss     float64 // mean cross-entropy over scored samples
	Accuracy float64
}

// Evaluate scores every sample of loader without updating the model. The
// prediction is the argmax over the full class-score row.
func Evaluate(m *rnn.Model, loader *IO.Loader, labels *IO.LabelSet) (Result, error) {
	var res Result
	err := loader.Each(func(_ int, b IO.Batch) error {
		for k, seq := range b.Inputs {
			gold, ok := labels.Index(b.Labels[k])
			if !ok {
				res.Skipped++
				continue
			}
			y, _ := m.ForwardSeq(seq)
			loss, _ := classLoss(y, gold)
			res.Loss += loss
			res.Samples++
			r, _ := y.Dims()
			if utils.Argmax(y.RawRowView(r-1)) == gold {
				res.Correct++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "evaluate")
	}
	if res.Samples > 0 {
		res.Loss /= float64(res.Samples)
		res.Accuracy = float64(res.Correct) / float64(res.Samples)
	}
	return res, nil
}
