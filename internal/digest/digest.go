package digest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultBufferSize is the read chunk used when a Digester has no explicit size.
const DefaultBufferSize = 8 * 1024

// Digest is the XXH64 (seed 0) fingerprint of a file's full byte content.
// Equal content always yields an equal Digest; an equal Digest does not prove equal content.
type Digest uint64

// String renders the digest as 16 lower-case hex digits.
func (d Digest) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// Decimal renders the digest as an unsigned decimal integer.
func (d Digest) Decimal() string {
	return strconv.FormatUint(uint64(d), 10)
}

// Parse accepts the hex form produced by String.
func Parse(s string) (Digest, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse digest %q: %w", s, err)
	}
	return Digest(v), nil
}

// AccessError reports a file that could not be opened or read while digesting.
type AccessError struct {
	Path string
	Op   string // "open" or "read"
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// IsAccessError reports whether err is (or wraps) an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// Digester computes digests by streaming content through a fixed-size buffer.
// The zero value is ready to use.
type Digester struct {
	BufferSize int
}

// New returns a Digester with the given chunk size (<= 0 selects DefaultBufferSize).
func New(bufferSize int) *Digester {
	return &Digester{BufferSize: bufferSize}
}

func (d *Digester) bufferSize() int {
	if d == nil || d.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return d.BufferSize
}

// File digests the file at path. The handle is closed before File returns.
func (d *Digester) File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &AccessError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	sum, err := d.Reader(f)
	if err != nil {
		return 0, &AccessError{Path: path, Op: "read", Err: err}
	}
	return sum, nil
}

// Reader digests r until EOF, one chunk at a time.
func (d *Digester) Reader(r io.Reader) (Digest, error) {
	h := xxhash.New()
	buf := make([]byte, d.bufferSize())
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return Digest(h.Sum64()), nil
}

// File digests path with the default buffer size.
func File(path string) (Digest, error) {
	return (&Digester{}).File(path)
}

// Bytes digests an in-memory buffer in one shot.
func Bytes(b []byte) Digest {
	return Digest(xxhash.Sum64(b))
}
