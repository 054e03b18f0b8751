package training

import (
	"bytes"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/Doct0rWats0n/imdb-classification/IO"
	"github.com/Doct0rWats0n/imdb-classification/optimizations"
	"github.com/Doct0rWats0n/imdb-classification/params"
	"github.com/Doct0rWats0n/imdb-classification/rnn"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func toyStore() *IO.Store {
	return IO.NewStore([]IO.Record{
		{Text: "aaaa", Label: "positive"},
		{Text: "abab", Label: "negative"},
		{Text: "aaa", Label: "positive"},
		{Text: "abcabc", Label: "negative"},
		{Text: "a", Label: "positive"},
		{Text: "", Label: "negative"},
	})
}

func toyLoader(s *IO.Store, batch int, shuffle bool) *IO.Loader {
	return &IO.Loader{
		Data:      IO.NewDataset(s, 0),
		BatchSize: batch,
		Shuffle:   shuffle,
		Workers:   2,
		Rand:      rand.New(rand.NewSource(3)),
	}
}

func toyConfig() params.Config {
	cfg := params.Defaults()
	cfg.EDim = 4
	cfg.HDim = 4
	cfg.LogEvery = 1
	return cfg
}

func newToyTrainer(t *testing.T, cfg params.Config, s *IO.Store) (*Trainer, *bytes.Buffer) {
	t.Helper()
	m, err := rnn.New(cfg.EDim, cfg.HDim, rand.New(rand.NewSource(42)))
	assert.NilError(t, err)
	opt, err := optimizations.FromConfig(cfg)
	assert.NilError(t, err)
	tr, err := NewTrainer(m, opt, IO.LabelsOf(s), cfg)
	assert.NilError(t, err)
	var out bytes.Buffer
	tr.Out = &out
	return tr, &out
}

var lossLine = regexp.MustCompile(`^\[\d+, [ \d]{4}\d\] loss: \d+\.\d{3}$`)

func TestRunReportsEveryBatchAndOver(t *testing.T) {
	s := toyStore()
	tr, out := newToyTrainer(t, toyConfig(), s)

	assert.NilError(t, tr.Run(toyLoader(s, 2, true)))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	// 2 epochs x 3 batches, then Over
	assert.Equal(t, len(lines), 7)
	for _, l := range lines[:6] {
		assert.Assert(t, lossLine.MatchString(l), "bad line %q", l)
	}
	assert.Assert(t, strings.HasPrefix(lines[0], "[1,     1] loss: "))
	assert.Assert(t, strings.HasPrefix(lines[3], "[2,     1] loss: "))
	assert.Assert(t, strings.HasPrefix(lines[5], "[2,     3] loss: "))
	assert.Equal(t, lines[6], "Over")
}

func TestRunReportsOnInterval(t *testing.T) {
	s := toyStore()
	cfg := toyConfig()
	cfg.LogEvery = 2
	tr, out := newToyTrainer(t, cfg, s)
	rec := &memRecorder{}
	tr.History = rec
	tr.RunID = "run-1"

	assert.NilError(t, tr.Run(toyLoader(s, 2, false)))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, len(lines), 3)
	assert.Assert(t, strings.HasPrefix(lines[0], "[1,     2] loss: "))
	assert.Assert(t, strings.HasPrefix(lines[1], "[2,     2] loss: "))
	assert.Equal(t, lines[2], "Over")

	assert.Equal(t, len(rec.reports), 2)
	assert.Equal(t, rec.reports[0].runID, "run-1")
	assert.Equal(t, rec.reports[1].epoch, 2)
	assert.Equal(t, rec.reports[1].batch, 2)
}

func TestRunStopsOnRecorderError(t *testing.T) {
	s := toyStore()
	tr, out := newToyTrainer(t, toyConfig(), s)
	tr.History = &memRecorder{err: errors.New("disk full")}

	err := tr.Run(toyLoader(s, 2, false))
	assert.ErrorContains(t, err, "disk full")
	assert.Assert(t, !strings.Contains(out.String(), "Over"))
}

func TestTrainingReducesLoss(t *testing.T) {
	s := toyStore()
	cfg := toyConfig()
	cfg.Optimizer = "adam"
	cfg.LearningRate = 0.05
	cfg.Epochs = 200
	cfg.LogEvery = 1000
	tr, _ := newToyTrainer(t, cfg, s)
	labels := IO.LabelsOf(s)

	before, err := Evaluate(tr.Model, toyLoader(s, 3, false), labels)
	assert.NilError(t, err)
	assert.NilError(t, tr.Run(toyLoader(s, 2, true)))
	after, err := Evaluate(tr.Model, toyLoader(s, 3, false), labels)
	assert.NilError(t, err)

	assert.Equal(t, after.Samples, 6)
	assert.Assert(t, after.Loss < before.Loss/2, "before %.4f after %.4f", before.Loss, after.Loss)
	assert.Equal(t, after.Accuracy, 1.0)
}

func TestStepGradientIsBatchMean(t *testing.T) {
	// one step on a duplicated sample must equal one step on the sample alone
	s := IO.NewStore([]IO.Record{{Text: "abca", Label: "x"}})
	cfg := toyConfig()
	cfg.Momentum = 0
	one, _ := newToyTrainer(t, cfg, s)
	two, _ := newToyTrainer(t, cfg, s)

	seq := IO.Encode("abca")
	l1, err := one.Step(IO.Batch{Inputs: [][]int{seq}, Labels: []string{"x"}})
	assert.NilError(t, err)
	l2, err := two.Step(IO.Batch{Inputs: [][]int{seq, seq}, Labels: []string{"x", "x"}})
	assert.NilError(t, err)

	assert.Assert(t, l1-l2 < 1e-12 && l2-l1 < 1e-12)
	for k, p := range one.Model.Params() {
		assert.Assert(t, mat.EqualApprox(p, two.Model.Params()[k], 1e-12), "param %d", k)
	}
}

func TestScheduleDrivesLearningRate(t *testing.T) {
	s := toyStore()
	cfg := toyConfig()
	cfg.WarmupSteps = 4
	tr, _ := newToyTrainer(t, cfg, s)
	spy := &lrSpy{}
	tr.Optimizer = spy

	tr.Epochs = 1
	assert.NilError(t, tr.Run(toyLoader(s, 2, false)))
	want := []float64{0.0025, 0.005, 0.0075}
	assert.Equal(t, len(spy.rates), len(want))
	for i, lr := range spy.rates {
		assert.Assert(t, math.Abs(lr-want[i]) < 1e-15, "step %d: %v", i+1, lr)
	}
}

func TestUnknownLabelFailsStep(t *testing.T) {
	s := toyStore()
	tr, _ := newToyTrainer(t, toyConfig(), s)
	_, err := tr.Step(IO.Batch{Inputs: [][]int{{0}}, Labels: []string{"neutral"}})
	assert.Assert(t, errors.Is(err, ErrUnknownLabel))
}

func TestTooManyClasses(t *testing.T) {
	s := IO.NewStore([]IO.Record{{Text: "a", Label: "1"}, {Text: "b", Label: "2"}, {Text: "c", Label: "3"}})
	m, err := rnn.New(2, 1, rand.New(rand.NewSource(1)))
	assert.NilError(t, err)
	_, err = NewTrainer(m, &optimizations.SGD{LR: 0.1}, IO.LabelsOf(s), toyConfig())
	assert.Assert(t, errors.Is(err, ErrTooManyClasses))
}

func TestEvaluateSkipsUnseenLabels(t *testing.T) {
	train := toyStore()
	test := IO.NewStore([]IO.Record{
		{Text: "aaaa", Label: "positive"},
		{Text: "abab", Label: "neutral"},
	})
	m, err := rnn.New(4, 4, rand.New(rand.NewSource(1)))
	assert.NilError(t, err)

	res, err := Evaluate(m, toyLoader(test, 4, false), IO.LabelsOf(train))
	assert.NilError(t, err)
	assert.Equal(t, res.Samples, 1)
	assert.Equal(t, res.Skipped, 1)
	assert.Assert(t, res.Loss > 0)
}

type report struct {
	runID        string
	epoch, batch int
	loss         float64
}

type memRecorder struct {
	reports []report
	err     error
}

func (r *memRecorder) Record(runID string, epoch, batch int, loss float64) error {
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, report{runID, epoch, batch, loss})
	return nil
}

type lrSpy struct {
	lr    float64
	rates []float64
}

func (s *lrSpy) SetLearningRate(lr float64) { s.lr = lr }

func (s *lrSpy) Step(_, _ []*mat.Dense) { s.rates = append(s.rates, s.lr) }
