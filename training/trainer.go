// Package training runs the optimisation loop over batches from an
// IO.Loader and reports the running loss.
package training

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Doct0rWats0n/imdb-classification/IO"
	"github.com/Doct0rWats0n/imdb-classification/optimizations"
	"github.com/Doct0rWats0n/imdb-classification/params"
	"github.com/Doct0rWats0n/imdb-classification/rnn"
	"github.com/Doct0rWats0n/imdb-classification/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooManyClasses means the label set does not fit in the model's
	// 2*HDim output scores.
	ErrTooManyClasses = errors.New("more classes than model outputs")
	ErrUnknownLabel   = errors.New("unknown label")
)

// Recorder receives every running-loss report. history.Store satisfies it.
type Recorder interface {
	Record(runID string, epoch, batch int, loss float64) error
}

type Trainer struct {
	Model     *rnn.Model
	Optimizer optimizations.Optimizer
	Schedule  *optimizations.Schedule // nil keeps the optimizer's rate
	Labels    *IO.LabelSet

	Epochs   int
	LogEvery int     // batches per loss report
	GradClip float64 // <=0 disables

	Out     io.Writer // receives the loss lines and "Over"
	Log     *zap.Logger
	History Recorder // optional
	RunID   string

	grads *rnn.Grads
	steps int
}

// NewTrainer wires a trainer from cfg. Out defaults to stdout and Log to
// a no-op logger; both can be replaced before Run.
func NewTrainer(m *rnn.Model, opt optimizations.Optimizer, labels *IO.LabelSet, cfg params.Config) (*Trainer, error) {
	if labels.Len() > m.Outputs() {
		return nil, errors.Wrapf(ErrTooManyClasses, "%d labels, %d outputs", labels.Len(), m.Outputs())
	}
	t := &Trainer{
		Model:     m,
		Optimizer: opt,
		Labels:    labels,
		Epochs:    cfg.Epochs,
		LogEvery:  cfg.LogEvery,
		GradClip:  cfg.GradClip,
		Out:       os.Stdout,
		Log:       zap.NewNop(),
	}
	if cfg.WarmupSteps > 0 || cfg.DecaySteps > 0 {
		t.Schedule = &optimizations.Schedule{
			Peak:   cfg.LearningRate,
			Warmup: cfg.WarmupSteps,
			Decay:  cfg.DecaySteps,
		}
	}
	return t, nil
}

// Run trains for Epochs passes over loader. Every LogEvery batches it
// prints the mean batch loss since the previous report as
// "[epoch, batch] loss: x" with 1-based counters, and "Over" at the end.
func (t *Trainer) Run(loader *IO.Loader) error {
	if t.LogEvery <= 0 {
		return errors.Errorf("log interval must be > 0, got %d", t.LogEvery)
	}
	log := t.logger()
	log.Info("training started",
		zap.Int("epochs", t.Epochs),
		zap.Int("batches", loader.Len()),
		zap.Int("batch_size", loader.BatchSize),
		zap.Int("classes", t.Labels.Len()))

	for epoch := 0; epoch < t.Epochs; epoch++ {
		start := time.Now()
		running := 0.0
		err := loader.Each(func(i int, b IO.Batch) error {
			loss, err := t.Step(b)
			if err != nil {
				return errors.Wrapf(err, "epoch %d batch %d", epoch+1, i+1)
			}
			running += loss
			if (i+1)%t.LogEvery == 0 {
				avg := running / float64(t.LogEvery)
				fmt.Fprintf(t.Out, "[%d, %5d] loss: %.3f\n", epoch+1, i+1, avg)
				if t.History != nil {
					if err := t.History.Record(t.RunID, epoch+1, i+1, avg); err != nil {
						return err
					}
				}
				running = 0
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Debug("epoch done", zap.Int("epoch", epoch+1), zap.Duration("took", time.Since(start)))
	}
	fmt.Fprintln(t.Out, "Over")
	return nil
}

// Step performs one optimizer update on b and returns the mean
// cross-entropy of its samples.
func (t *Trainer) Step(b IO.Batch) (float64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if t.grads == nil {
		t.grads = t.Model.NewGrads()
	}
	t.grads.Zero()

	inv := 1.0 / float64(b.Len())
	total := 0.0
	for k, seq := range b.Inputs {
		gold, ok := t.Labels.Index(b.Labels[k])
		if !ok {
			return 0, errors.Wrapf(ErrUnknownLabel, "%q", b.Labels[k])
		}
		y, tr := t.Model.ForwardSeq(seq)
		loss, dScores := classLoss(y, gold)
		total += loss

		// only the class-score row carries loss
		r, c := y.Dims()
		dY := mat.NewDense(r, c, nil)
		row := dY.RawRowView(r - 1)
		for j := range row {
			row[j] = dScores.At(j, 0) * inv
		}
		t.Model.Backward(tr, dY, t.grads)
	}

	ps := t.Model.Params()
	grads := t.grads.List()
	if t.GradClip > 0 {
		if s := utils.ClipGrads(t.GradClip, grads...); s < 1 {
			t.logger().Debug("clipped gradients", zap.Float64("scale", s))
		}
	}
	t.steps++
	if t.Schedule != nil {
		t.Optimizer.SetLearningRate(t.Schedule.At(t.steps))
	}
	t.Optimizer.Step(ps, grads)
	return total * inv, nil
}

func (t *Trainer) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// classLoss is the cross-entropy of the last output row against gold.
func classLoss(y *mat.Dense, gold int) (float64, *mat.Dense) {
	r, c := y.Dims()
	logits := mat.NewDense(c, 1, nil)
	copy(logits.RawMatrix().Data, y.RawRowView(r-1))
	return utils.CrossEntropyWithIndex(logits, gold)
}
