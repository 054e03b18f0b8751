package IO

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrIndexOutOfRange is returned by Store.Get for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("record index out of range")
	// ErrMalformedRecord marks a row that does not hold exactly (text, label).
	ErrMalformedRecord = errors.New("malformed record")
)

// Record is one (text, label) row of the dataset.
type Record struct {
	Text  string
	Label string
}

// MalformedRecordError identifies the offending row of a failed load.
type MalformedRecordError struct {
	Row    int // zero-based row index in the file
	Fields int // number of fields found
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: want 2 fields, got %d", e.Row, e.Fields)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Store holds every record of one dataset file in file order.
// It is read-only after construction and safe for concurrent Get.
type Store struct {
	path    string
	records []Record
}

// LoadStore reads all rows of path. Any row with a field count other than
// two fails the whole load.
func LoadStore(path string, comma rune) (*Store, error) {
	src, err := OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	s, err := ReadStore(src, comma)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	s.path = path
	return s, nil
}

// ReadStore is LoadStore over an already opened reader.
func ReadStore(r io.Reader, comma rune) (*Store, error) {
	rows, err := readRows(r, comma)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, &MalformedRecordError{Row: i, Fields: len(row)}
		}
		records[i] = Record{Text: row[0], Label: row[1]}
	}
	return &Store{records: records}, nil
}

// NewStore builds a store from records already in memory.
func NewStore(records []Record) *Store {
	return &Store{records: append([]Record(nil), records...)}
}

func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(i int) (Record, error) {
	if i < 0 || i >= len(s.records) {
		return Record{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, len(s.records))
	}
	return s.records[i], nil
}

// readRows parses every row of a delimited stream, keeping per-row field
// counts as found so callers decide what is malformed. Quotes inside an
// unquoted field are kept as text. Blank lines come back as zero-field rows,
// so row numbers match the line structure of the file.
func readRows(r io.Reader, comma rune) ([][]string, error) {
	lc := &lineCounter{r: r}
	cr := csv.NewReader(lc)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	end := 0 // last line of the previous row
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return blankRows(rows, lc.total()-end), nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse row %d", len(rows))
		}
		start, _ := cr.FieldPos(0)
		rows = blankRows(rows, start-end-1)

		last := len(row) - 1
		line, _ := cr.FieldPos(last)
		end = line + strings.Count(row[last], "\n")
		rows = append(rows, row)
	}
}

func blankRows(rows [][]string, n int) [][]string {
	for ; n > 0; n-- {
		rows = append(rows, []string{})
	}
	return rows
}

// lineCounter counts the lines of everything read through it.
type lineCounter struct {
	r        io.Reader
	newlines int
	last     byte
	seen     bool
}

func (c *lineCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.newlines += bytes.Count(p[:n], []byte{'\n'})
		c.last = p[n-1]
		c.seen = true
	}
	return n, err
}

// total is the number of lines, counting an unterminated last line.
func (c *lineCounter) total() int {
	if c.seen && c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}
