package IO

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// EncodedRecord is one record read back from an exported shard.
type EncodedRecord struct {
	Input []int
	Label int // index into the exported label list
}

// Export writes the encoded records of d as binary shards:
//
//   - <prefix>-NNN.bin = concatenated little-endian int32 symbol indices
//   - <prefix>-NNN.idx = per record int64 (offset, length, label)
//   - <prefix>.labels  = label names, one per line, in index order
//
// A new shard starts once the current .bin reaches maxShardBytes (<= 0
// keeps everything in one shard). Returns the number of shards written.
// Labels holding a newline cannot be written to the .labels file and fail
// the export before anything is created.
func Export(d *Dataset, labels *LabelSet, prefix string, maxShardBytes int64) (int, error) {
	for i, name := range labels.Names() {
		if strings.Contains(name, "\n") {
			return 0, errors.Errorf("label %d %q contains a newline", i, name)
		}
	}
	if err := os.WriteFile(prefix+".labels", []byte(strings.Join(labels.Names(), "\n")+"\n"), 0o644); err != nil {
		return 0, errors.Wrap(err, "write labels")
	}

	var (
		shard       int
		dataF, idxF *os.File
		wData, wIdx *bufio.Writer
		cur         int64
	)
	closeShard := func() error {
		if dataF == nil {
			return nil
		}
		for _, w := range []*bufio.Writer{wData, wIdx} {
			if err := w.Flush(); err != nil {
				return errors.Wrap(err, "flush shard")
			}
		}
		if err := dataF.Close(); err != nil {
			return err
		}
		return idxF.Close()
	}
	openShard := func() error {
		if err := closeShard(); err != nil {
			return err
		}
		var err error
		dataF, err = os.Create(shardPath(prefix, shard, "bin"))
		if err != nil {
			return errors.Wrap(err, "create shard")
		}
		idxF, err = os.Create(shardPath(prefix, shard, "idx"))
		if err != nil {
			dataF.Close()
			return errors.Wrap(err, "create shard index")
		}
		wData = bufio.NewWriter(dataF)
		wIdx = bufio.NewWriter(idxF)
		cur = 0
		shard++
		return nil
	}

	if err := openShard(); err != nil {
		return 0, err
	}
	buf4 := make([]byte, 4)
	buf8 := make([]byte, 8)
	for i := 0; i < d.Len(); i++ {
		s, err := d.Get(i)
		if err != nil {
			closeShard()
			return shard, err
		}
		label, ok := labels.Index(s.Label)
		if !ok {
			closeShard()
			return shard, errors.Errorf("record %d: label %q not in label set", i, s.Label)
		}

		for _, v := range []int64{cur, int64(len(s.Input)), int64(label)} {
			binary.LittleEndian.PutUint64(buf8, uint64(v))
			if _, err := wIdx.Write(buf8); err != nil {
				closeShard()
				return shard, errors.Wrap(err, "write index")
			}
		}
		for _, k := range s.Input {
			binary.LittleEndian.PutUint32(buf4, uint32(k))
			if _, err := wData.Write(buf4); err != nil {
				closeShard()
				return shard, errors.Wrap(err, "write shard")
			}
		}
		cur += int64(4 * len(s.Input))

		if maxShardBytes > 0 && cur >= maxShardBytes && i+1 < d.Len() {
			if err := openShard(); err != nil {
				return shard, err
			}
		}
	}
	return shard, closeShard()
}

// ReadShard loads one shard written by Export.
func ReadShard(prefix string, shard int) ([]EncodedRecord, error) {
	data, err := os.ReadFile(shardPath(prefix, shard, "bin"))
	if err != nil {
		return nil, errors.Wrap(err, "read shard")
	}
	idx, err := os.Open(shardPath(prefix, shard, "idx"))
	if err != nil {
		return nil, errors.Wrap(err, "open shard index")
	}
	defer idx.Close()

	var out []EncodedRecord
	r := bufio.NewReader(idx)
	entry := make([]int64, 3)
	for {
		if err := binary.Read(r, binary.LittleEndian, entry); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, errors.Wrap(err, "read shard index")
		}
		off, n := entry[0], entry[1]
		if off < 0 || n < 0 || off+4*n > int64(len(data)) {
			return nil, errors.Errorf("shard %d: entry %d out of bounds", shard, len(out))
		}
		in := make([]int, n)
		for j := range in {
			in[j] = int(int32(binary.LittleEndian.Uint32(data[off+4*int64(j):])))
		}
		out = append(out, EncodedRecord{Input: in, Label: int(entry[2])})
	}
}

// ReadLabels returns the label names written by Export.
func ReadLabels(prefix string) ([]string, error) {
	b, err := os.ReadFile(prefix + ".labels")
	if err != nil {
		return nil, errors.Wrap(err, "read labels")
	}
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "\n"), nil
}

func shardPath(prefix string, shard int, ext string) string {
	return fmt.Sprintf("%s-%03d.%s", prefix, shard, ext)
}
