package IO

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// OpenSource opens a dataset file for reading. Paths ending in ".xz" are
// decompressed transparently.
func OpenSource(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	if !isXZ(path) {
		return f, nil
	}
	zr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "xz header of %s", path)
	}
	return &xzSource{Reader: zr, f: f}, nil
}

// CreateSink creates (or truncates) a dataset file for writing. Paths
// ending in ".xz" are compressed; Close flushes the stream and the file.
func CreateSink(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create dataset")
	}
	if !isXZ(path) {
		return f, nil
	}
	zw, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "xz writer for %s", path)
	}
	return &xzSink{Writer: zw, f: f}, nil
}

func isXZ(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}

type xzSource struct {
	*xz.Reader
	f *os.File
}

func (s *xzSource) Close() error {
	return s.f.Close()
}

type xzSink struct {
	*xz.Writer
	f *os.File
}

func (s *xzSink) Close() error {
	if err := s.Writer.Close(); err != nil {
		s.f.Close()
		return errors.Wrap(err, "xz close")
	}
	return s.f.Close()
}
