package IO

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gotest.tools/v3/assert"
)

func writeRowsFile(t *testing.T, path string, rows [][]string) {
	t.Helper()
	out, err := CreateSink(path)
	assert.NilError(t, err)
	w := csv.NewWriter(out)
	assert.NilError(t, w.WriteAll(rows))
	assert.NilError(t, out.Close())
}

func readRowsFile(t *testing.T, path string) [][]string {
	t.Helper()
	in, err := OpenSource(path)
	assert.NilError(t, err)
	defer in.Close()
	rows, err := readRows(in, ',')
	assert.NilError(t, err)
	return rows
}

func reviewRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		switch i {
		case 0:
			rows[i] = []string{"good movie", "pos"}
		case 1:
			rows[i] = []string{"bad movie", "neg"}
		default:
			label := "pos"
			if i%2 == 1 {
				label = "neg"
			}
			rows[i] = []string{fmt.Sprintf("review %d, with a comma", i), label}
		}
	}
	return rows
}

func TestSplitDefaultCutoff(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "IMDB Dataset.csv")
	rows := reviewRows(DefaultCutoff + 2)
	writeRowsFile(t, src, rows)

	train := filepath.Join(dir, "training.csv")
	test := filepath.Join(dir, "testing.csv")
	res, err := Split(src, train, test, SplitOptions{Cutoff: DefaultCutoff, Comma: ','})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: DefaultCutoff, Test: 2})

	gotTrain := readRowsFile(t, train)
	gotTest := readRowsFile(t, test)
	assert.DeepEqual(t, gotTrain, rows[:DefaultCutoff])
	assert.DeepEqual(t, gotTest, rows[DefaultCutoff:])
}

func TestSplitExactlyCutoffRows(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	rows := reviewRows(10)
	writeRowsFile(t, src, rows)

	train := filepath.Join(dir, "training.csv")
	test := filepath.Join(dir, "testing.csv")
	res, err := Split(src, train, test, SplitOptions{Cutoff: 10})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: 10, Test: 0})

	assert.DeepEqual(t, readRowsFile(t, train), rows)
	info, err := os.Stat(test)
	assert.NilError(t, err)
	assert.Equal(t, info.Size(), int64(0))
}

func TestSplitShortSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	writeRowsFile(t, src, reviewRows(3))

	res, err := Split(src, filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"), SplitOptions{Cutoff: 5})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: 3, Test: 0})
}

func TestSplitNoLossNoDuplication(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	rows := reviewRows(57)
	writeRowsFile(t, src, rows)

	train := filepath.Join(dir, "training.csv")
	test := filepath.Join(dir, "testing.csv")
	_, err := Split(src, train, test, SplitOptions{Cutoff: 20})
	assert.NilError(t, err)

	joined := append(readRowsFile(t, train), readRowsFile(t, test)...)
	assert.DeepEqual(t, joined, rows)
}

func TestSplitKeepsDelimiter(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.tsv", "a\tpos\nb\tneg\n")
	train := filepath.Join(dir, "training.tsv")
	test := filepath.Join(dir, "testing.tsv")
	_, err := Split(src, train, test, SplitOptions{Cutoff: 1, Comma: '\t'})
	assert.NilError(t, err)

	got, err := os.ReadFile(test)
	assert.NilError(t, err)
	assert.Equal(t, strings.TrimSpace(string(got)), "b\tneg")
}

func TestSplitCompressed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv.xz")
	rows := reviewRows(9)
	writeRowsFile(t, src, rows)

	train := filepath.Join(dir, "training.csv.xz")
	test := filepath.Join(dir, "testing.csv")
	res, err := Split(src, train, test, SplitOptions{Cutoff: 4})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: 4, Test: 5})
	assert.DeepEqual(t, readRowsFile(t, train), rows[:4])
	assert.DeepEqual(t, readRowsFile(t, test), rows[4:])

	s, err := LoadStore(train, ',')
	assert.NilError(t, err)
	assert.Equal(t, s.Len(), 4)
}

func TestSplitMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := Split(filepath.Join(dir, "missing.csv"), filepath.Join(dir, "a"), filepath.Join(dir, "b"), SplitOptions{Cutoff: 1})
	assert.Assert(t, os.IsNotExist(errors.Cause(err)))
	_, statErr := os.Stat(filepath.Join(dir, "a"))
	assert.Assert(t, os.IsNotExist(statErr))
}

func TestSplitNegativeCutoff(t *testing.T) {
	_, err := Split("x", "y", "z", SplitOptions{Cutoff: -1})
	assert.ErrorContains(t, err, "cutoff")
}

func TestSplitCountsBlankLinesAsRows(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.csv", "a,pos\n\nb,neg\nc,pos\n")
	train := filepath.Join(dir, "training.csv")
	test := filepath.Join(dir, "testing.csv")

	res, err := Split(src, train, test, SplitOptions{Cutoff: 2})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: 2, Test: 2})

	got, err := os.ReadFile(train)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "a,pos\n\n")
	got, err = os.ReadFile(test)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "b,neg\nc,pos\n")
}

func TestSplitKeepsBareQuotes(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.csv", "He said \"wow\" loudly,positive\nfine,negative\n")
	train := filepath.Join(dir, "training.csv")
	test := filepath.Join(dir, "testing.csv")

	res, err := Split(src, train, test, SplitOptions{Cutoff: 1})
	assert.NilError(t, err)
	assert.Equal(t, res, SplitResult{Train: 1, Test: 1})

	s, err := LoadStore(train, ',')
	assert.NilError(t, err)
	rec, err := s.Get(0)
	assert.NilError(t, err)
	assert.Equal(t, rec, Record{Text: `He said "wow" loudly`, Label: "positive"})
}
