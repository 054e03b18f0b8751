package IO

import (
	"encoding/csv"

	"github.com/pkg/errors"
)

// DefaultCutoff is the number of rows that go to the training file.
const DefaultCutoff = 25000

type SplitOptions struct {
	Cutoff int  // rows [0, Cutoff) go to training, the rest to testing
	Comma  rune // field delimiter for both reading and writing
}

type SplitResult struct {
	Train int
	Test  int
}

// Split copies the rows of src into trainPath and testPath by a fixed
// row-count cutoff. Rows keep their field order and relative order. A
// source shorter than the cutoff yields an empty testing file. Outputs
// already written are left in place on failure.
func Split(src, trainPath, testPath string, opt SplitOptions) (SplitResult, error) {
	var res SplitResult
	if opt.Cutoff < 0 {
		return res, errors.Errorf("split cutoff must be >= 0, got %d", opt.Cutoff)
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	in, err := OpenSource(src)
	if err != nil {
		return res, err
	}
	rows, err := readRows(in, opt.Comma)
	in.Close()
	if err != nil {
		return res, errors.Wrapf(err, "read %s", src)
	}

	cut := opt.Cutoff
	if cut > len(rows) {
		cut = len(rows)
	}
	if err := writeRows(trainPath, rows[:cut], opt.Comma); err != nil {
		return res, err
	}
	res.Train = cut
	if err := writeRows(testPath, rows[cut:], opt.Comma); err != nil {
		return res, err
	}
	res.Test = len(rows) - cut
	return res, nil
}

func writeRows(path string, rows [][]string, comma rune) error {
	out, err := CreateSink(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)
	w.Comma = comma
	if err := w.WriteAll(rows); err != nil {
		out.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(out.Close(), "close %s", path)
}
