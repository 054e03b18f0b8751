package IO

import (
	"math/rand"

	"github.com/Doct0rWats0n/imdb-classification/parallel"
	"github.com/pkg/errors"
)

// ErrEmptyDataset is returned when a loader has nothing to iterate.
var ErrEmptyDataset = errors.New("empty dataset")

// Batch is a group of samples collated for one optimizer step. Inputs
// keep their own lengths; zero-length inputs are allowed.
type Batch struct {
	Indices []int
	Inputs  [][]int
	Labels  []string
}

func (b Batch) Len() int {
	return len(b.Inputs)
}

// Loader cuts a Dataset into fixed-size batches, optionally in a fresh
// random order every pass. The last batch may be short. Collation runs on
// Workers goroutines; batches are handed to the caller in order on the
// calling goroutine.
type Loader struct {
	Data      *Dataset
	BatchSize int
	Shuffle   bool
	Workers   int
	Rand      *rand.Rand
}

// Len is the number of batches in one pass.
func (l *Loader) Len() int {
	if l.BatchSize <= 0 {
		return 0
	}
	return (l.Data.Len() + l.BatchSize - 1) / l.BatchSize
}

// Each makes one pass over the data, calling fn with the batch number and
// the batch. It stops at the first error from collation or from fn.
func (l *Loader) Each(fn func(i int, b Batch) error) error {
	if l.BatchSize <= 0 {
		return errors.Errorf("batch size must be > 0, got %d", l.BatchSize)
	}
	n := l.Data.Len()
	if n == 0 {
		return ErrEmptyDataset
	}
	order := l.order(n)
	nb := l.Len()
	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}

	window := make([]Batch, workers)
	for start := 0; start < nb; start += workers {
		count := workers
		if start+count > nb {
			count = nb - start
		}
		err := parallel.ForEach(count, workers, func(k int) error {
			b, err := l.collate(order, start+k)
			window[k] = b
			return err
		})
		if err != nil {
			return err
		}
		for k := 0; k < count; k++ {
			if err := fn(start+k, window[k]); err != nil {
				return err
			}
			window[k] = Batch{}
		}
	}
	return nil
}

func (l *Loader) order(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.Shuffle {
		shuffle := rand.Shuffle
		if l.Rand != nil {
			shuffle = l.Rand.Shuffle
		}
		shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

func (l *Loader) collate(order []int, batch int) (Batch, error) {
	lo := batch * l.BatchSize
	hi := lo + l.BatchSize
	if hi > len(order) {
		hi = len(order)
	}
	b := Batch{
		Indices: make([]int, 0, hi-lo),
		Inputs:  make([][]int, 0, hi-lo),
		Labels:  make([]string, 0, hi-lo),
	}
	for _, idx := range order[lo:hi] {
		s, err := l.Data.Get(idx)
		if err != nil {
			return Batch{}, err
		}
		b.Indices = append(b.Indices, idx)
		b.Inputs = append(b.Inputs, s.Input)
		b.Labels = append(b.Labels, s.Label)
	}
	return b, nil
}
