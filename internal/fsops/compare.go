package fsops

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const compareChunk = 32 * 1024

// SameContent reports whether the files at a and b hold identical bytes.
// Both files are streamed; neither is loaded whole.
func SameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", a, err)
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", b, err)
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	ib, err := fb.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", b, err)
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}
	if os.SameFile(ia, ib) {
		return true, nil
	}

	bufA := make([]byte, compareChunk)
	bufB := make([]byte, compareChunk)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA, err := endOfStream(a, errA)
		if err != nil {
			return false, err
		}
		doneB, err := endOfStream(b, errB)
		if err != nil {
			return false, err
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}

func endOfStream(path string, err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true, nil
	default:
		return false, fmt.Errorf("read %s: %w", path, err)
	}
}
