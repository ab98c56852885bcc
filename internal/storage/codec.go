package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// Compression names a document encoding.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
	// CompressionAuto picks the encoding from the object name.
	CompressionAuto Compression = "auto"
)

// ParseCompression maps a configuration value to a Compression. An empty
// string selects CompressionAuto.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "":
		return CompressionAuto, nil
	case CompressionNone, CompressionGzip, CompressionSnappy, CompressionAuto:
		return c, nil
	default:
		return "", cerrors.NewStorageError(cerrors.CodeCodecFailed, fmt.Sprintf("unknown compression %q", s), nil)
	}
}

// CompressionFor detects the encoding of name from its extension: ".gz" is
// gzip and ".sz" is snappy framing.
func CompressionFor(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".sz"):
		return CompressionSnappy
	default:
		return CompressionNone
	}
}

// TrimCompression strips a compression extension from name.
func TrimCompression(name string) string {
	for _, ext := range []string{".gz", ".sz"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func (c Compression) resolve(name string) Compression {
	if c == CompressionAuto || c == "" {
		return CompressionFor(name)
	}
	return c
}

// NewReader returns a reader decoding r. Closing it does not close r.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, cerrors.NewStorageError(cerrors.CodeCodecFailed, "failed to open gzip stream", err)
		}
		return zr, nil
	case CompressionSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CompressionNone, CompressionAuto, "":
		return io.NopCloser(r), nil
	default:
		return nil, cerrors.NewStorageError(cerrors.CodeCodecFailed, fmt.Sprintf("unknown compression %q", c), nil)
	}
}

// NewWriter returns a writer encoding into w. Close flushes the encoder but
// does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionNone, CompressionAuto, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, cerrors.NewStorageError(cerrors.CodeCodecFailed, fmt.Sprintf("unknown compression %q", c), nil)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// OpenFile opens a local file and decodes it according to its extension.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileReader{ReadCloser: r, file: f}, nil
}

type fileReader struct {
	io.ReadCloser
	file *os.File
}

func (r *fileReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
