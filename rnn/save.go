package rnn

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// modelData is the gob form of a Model (weights only).
type modelData struct {
	EDim, HDim int

	Wih, Whh []float64
	Bih, Bhh []float64
	Wfc, Bfc []float64
}

func raw(m *mat.Dense) []float64 {
	return append([]float64(nil), mat.DenseCopyOf(m).RawMatrix().Data...)
}

// Encode writes the model weights to w.
func (m *Model) Encode(w io.Writer) error {
	data := modelData{
		EDim: m.EDim,
		HDim: m.HDim,
		Wih:  raw(m.RNN.Wih),
		Whh:  raw(m.RNN.Whh),
		Bih:  raw(m.RNN.Bih),
		Bhh:  raw(m.RNN.Bhh),
		Wfc:  raw(m.FC1.W),
		Bfc:  raw(m.FC1.B),
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(data), "encode model")
}

// Decode reads weights written by Encode into a new Model.
func Decode(r io.Reader) (*Model, error) {
	var data modelData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "decode model")
	}
	e, h := data.EDim, data.HDim
	if e <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "e_dim=%d h_dim=%d", e, h)
	}
	sizes := []struct {
		name string
		got  int
		want int
	}{
		{"rnn.weight_ih", len(data.Wih), h * e},
		{"rnn.weight_hh", len(data.Whh), h * h},
		{"rnn.bias_ih", len(data.Bih), h},
		{"rnn.bias_hh", len(data.Bhh), h},
		{"fc1.weight", len(data.Wfc), 2 * h * h},
		{"fc1.bias", len(data.Bfc), 2 * h},
	}
	for _, s := range sizes {
		if s.got != s.want {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s has %d values, want %d", s.name, s.got, s.want)
		}
	}
	return &Model{
		EDim: e,
		HDim: h,
		RNN: &Cell{
			In:     e,
			Hidden: h,
			Wih:    mat.NewDense(h, e, data.Wih),
			Whh:    mat.NewDense(h, h, data.Whh),
			Bih:    mat.NewDense(1, h, data.Bih),
			Bhh:    mat.NewDense(1, h, data.Bhh),
		},
		FC1: &Linear{
			In:  h,
			Out: 2 * h,
			W:   mat.NewDense(2*h, h, data.Wfc),
			B:   mat.NewDense(1, 2*h, data.Bfc),
		},
	}, nil
}

// Save writes the model to filename, creating parent directories.
func Save(m *Model, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "model dir")
		}
	}
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(filename, buf.Bytes(), 0o644), "write model")
}

func Load(filename string) (*Model, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	return Decode(bytes.NewReader(b))
}
