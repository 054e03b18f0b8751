package IO

import "github.com/pkg/errors"

// Alphabet is the set of distinct runes of one text, numbered in order of
// first occurrence. It is rebuilt for every text; the same rune can get
// different numbers in different texts.
type Alphabet struct {
	index   map[rune]int
	symbols []rune
}

func NewAlphabet(text string) *Alphabet {
	a := &Alphabet{index: make(map[rune]int)}
	for _, r := range text {
		if _, ok := a.index[r]; !ok {
			a.index[r] = len(a.symbols)
			a.symbols = append(a.symbols, r)
		}
	}
	return a
}

func (a *Alphabet) Len() int {
	return len(a.symbols)
}

func (a *Alphabet) Index(r rune) (int, bool) {
	i, ok := a.index[r]
	return i, ok
}

// Symbols returns the runes in index order.
func (a *Alphabet) Symbols() []rune {
	return append([]rune(nil), a.symbols...)
}

// Encode maps every rune of text to its index in the text's own alphabet.
// The result has one entry per rune; the empty text gives an empty slice.
func Encode(text string) []int {
	a := NewAlphabet(text)
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, a.index[r])
	}
	return out
}

// Decode rebuilds a text from an encoding and the alphabet it was built with.
// Every value must lie in [0, Len()).
func (a *Alphabet) Decode(seq []int) (string, error) {
	rs := make([]rune, len(seq))
	for i, k := range seq {
		if k < 0 || k >= len(a.symbols) {
			return "", errors.Errorf("position %d: symbol %d outside alphabet of %d", i, k, len(a.symbols))
		}
		rs[i] = a.symbols[k]
	}
	return string(rs), nil
}
