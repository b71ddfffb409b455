package buffer

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// WindowFunction selects the taper applied to extracted blocks.
type WindowFunction int

const (
	WindowNone WindowFunction = iota
	WindowHann
	WindowHamming
	WindowBlackman
)

func (w WindowFunction) String() string {
	switch w {
	case WindowNone:
		return "none"
	case WindowHann:
		return "hann"
	case WindowHamming:
		return "hamming"
	case WindowBlackman:
		return "blackman"
	default:
		return fmt.Sprintf("WindowFunction(%d)", int(w))
	}
}

// ParseWindowFunction parses a name as produced by WindowFunction.String.
func ParseWindowFunction(s string) (WindowFunction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, w := range []WindowFunction{WindowNone, WindowHann, WindowHamming, WindowBlackman} {
		if w.String() == name {
			return w, nil
		}
	}
	return WindowNone, fmt.Errorf("unknown window function %q", s)
}

func (w WindowFunction) coefficients(size int) []float32 {
	var coeffs []float64
	switch w {
	case WindowHann:
		coeffs = window.Hann(size)
	case WindowHamming:
		coeffs = window.Hamming(size)
	case WindowBlackman:
		coeffs = window.Blackman(size)
	default:
		return nil
	}
	out := make([]float32, size)
	for i, c := range coeffs {
		out[i] = float32(c)
	}
	return out
}

// BlockExtractor reads consecutive, non-overlapping blocks of a fixed size
// from a CircularBuffer.
type BlockExtractor struct {
	source    *CircularBuffer
	blockSize int
	windowFn  WindowFunction
	coeffs    []float32
	scratch   []float32
	extracted uint64
}

// NewBlockExtractor returns an extractor of blockSize blocks from source.
func NewBlockExtractor(source *CircularBuffer, blockSize int, windowFn WindowFunction) (*BlockExtractor, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidSize, blockSize)
	}
	if blockSize > source.Capacity() {
		return nil, fmt.Errorf("%w: block size %d exceeds buffer capacity %d", ErrInvalidSize, blockSize, source.Capacity())
	}
	e := &BlockExtractor{source: source, windowFn: windowFn}
	e.resize(blockSize)
	return e, nil
}

func (e *BlockExtractor) resize(blockSize int) {
	e.blockSize = blockSize
	e.scratch = make([]float32, blockSize)
	e.coeffs = e.windowFn.coefficients(blockSize)
}

// SetBlockSize changes the block size. It allocates and is meant for
// reconfiguration only.
func (e *BlockExtractor) SetBlockSize(blockSize int) error {
	if blockSize <= 0 || blockSize > e.source.Capacity() {
		return fmt.Errorf("%w: block size %d (capacity %d)", ErrInvalidSize, blockSize, e.source.Capacity())
	}
	if blockSize != e.blockSize {
		e.resize(blockSize)
	}
	return nil
}

// BlockSize returns the current block size.
func (e *BlockExtractor) BlockSize() int {
	return e.blockSize
}

// Extracted returns the number of blocks handed out.
func (e *BlockExtractor) Extracted() uint64 {
	return e.extracted
}

// Next consumes and returns the next complete block, or false when fewer
// than BlockSize samples are buffered. Without a window function the block
// is a view into the buffer when it does not wrap; the returned slice is
// only valid until the next write to the buffer or call to Next.
func (e *BlockExtractor) Next() ([]float32, bool) {
	if e.source.Available() < e.blockSize {
		return nil, false
	}
	e.extracted++

	if e.coeffs == nil {
		if view, ok := e.source.contiguous(e.blockSize); ok {
			e.source.Discard(e.blockSize)
			return view, true
		}
	}

	e.source.Read(e.scratch)
	for i, c := range e.coeffs {
		e.scratch[i] *= c
	}
	return e.scratch, true
}
