package IO

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/pkg/errors"
)

// Sample is one encoded record ready for collation.
type Sample struct {
	Input []int
	Label string
}

// Dataset pairs a Store with the text encoder. Encoded inputs can be kept
// in a fixed-size cache so later epochs skip re-encoding. Get is safe for
// concurrent use.
type Dataset struct {
	store *Store
	cache *fastcache.Cache
}

// NewDataset wraps s. cacheBytes <= 0 disables the encoded-sample cache.
func NewDataset(s *Store, cacheBytes int) *Dataset {
	d := &Dataset{store: s}
	if cacheBytes > 0 {
		d.cache = fastcache.New(cacheBytes)
	}
	return d
}

func (d *Dataset) Len() int {
	return d.store.Len()
}

func (d *Dataset) Get(i int) (Sample, error) {
	rec, err := d.store.Get(i)
	if err != nil {
		return Sample{}, err
	}
	if d.cache == nil {
		return Sample{Input: Encode(rec.Text), Label: rec.Label}, nil
	}

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(i))
	if buf, ok := d.cache.HasGet(nil, key[:]); ok {
		seq, err := unpackSeq(buf)
		if err != nil {
			return Sample{}, errors.Wrapf(err, "cached sample %d", i)
		}
		return Sample{Input: seq, Label: rec.Label}, nil
	}
	seq := Encode(rec.Text)
	d.cache.Set(key[:], packSeq(seq))
	return Sample{Input: seq, Label: rec.Label}, nil
}

// Reset drops every cached sample.
func (d *Dataset) Reset() {
	if d.cache != nil {
		d.cache.Reset()
	}
}

func packSeq(seq []int) []byte {
	buf := make([]byte, 0, len(seq))
	for _, v := range seq {
		buf = binary.AppendUvarint(buf, uint64(v))
	}
	return buf
}

func unpackSeq(buf []byte) ([]int, error) {
	seq := make([]int, 0, len(buf))
	for len(buf) > 0 {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, errors.New("corrupt varint")
		}
		seq = append(seq, int(v))
		buf = buf[n:]
	}
	return seq, nil
}
