package buffer

import (
	"errors"
	"testing"
)

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func mustBuffer(t *testing.T, capacity int) *CircularBuffer {
	t.Helper()
	cb, err := NewCircularBuffer(capacity)
	if err != nil {
		t.Fatalf("NewCircularBuffer(%d) error = %v", capacity, err)
	}
	return cb
}

func TestNewCircularBufferInvalid(t *testing.T) {
	for _, c := range []int{0, -4} {
		if _, err := NewCircularBuffer(c); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("NewCircularBuffer(%d) error = %v, want ErrInvalidSize", c, err)
		}
	}
}

func TestCircularBufferFIFO(t *testing.T) {
	cb := mustBuffer(t, 8)
	cb.Write(ramp(0, 5))
	if cb.Available() != 5 {
		t.Fatalf("Available() = %d, want 5", cb.Available())
	}

	dst := make([]float32, 3)
	if n := cb.Read(dst); n != 3 {
		t.Fatalf("Read() = %d, want 3", n)
	}
	for i, v := range dst {
		if v != float32(i) {
			t.Fatalf("dst[%d] = %v, want %d", i, v, i)
		}
	}

	// wraps around the end of the backing array
	cb.Write(ramp(5, 5))
	got := make([]float32, 10)
	if n := cb.Read(got); n != 7 {
		t.Fatalf("Read() = %d, want 7", n)
	}
	for i := 0; i < 7; i++ {
		if got[i] != float32(3+i) {
			t.Fatalf("got[%d] = %v, want %d", i, got[i], 3+i)
		}
	}
	if cb.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", cb.Dropped())
	}
}

func TestCircularBufferOverwritesOldest(t *testing.T) {
	cb := mustBuffer(t, 4)
	cb.Write(ramp(0, 3))
	cb.Write(ramp(3, 3))
	if cb.Available() != 4 || cb.Dropped() != 2 {
		t.Fatalf("Available() = %d, Dropped() = %d; want 4, 2", cb.Available(), cb.Dropped())
	}
	dst := make([]float32, 4)
	cb.Peek(dst)
	for i, v := range dst {
		if v != float32(2+i) {
			t.Fatalf("dst[%d] = %v, want %d", i, v, 2+i)
		}
	}

	cb.Write(ramp(10, 6))
	if cb.Dropped() != 2+4+2 {
		t.Fatalf("Dropped() = %d, want 8", cb.Dropped())
	}
	cb.Read(dst)
	for i, v := range dst {
		if v != float32(12+i) {
			t.Fatalf("dst[%d] = %v, want %d", i, v, 12+i)
		}
	}
}

func TestCircularBufferClear(t *testing.T) {
	cb := mustBuffer(t, 4)
	cb.Write(ramp(0, 4))
	cb.Clear()
	if cb.Available() != 0 {
		t.Fatalf("Available() = %d after Clear", cb.Available())
	}
	cb.Discard(10)
	if cb.Available() != 0 {
		t.Fatalf("Available() = %d after Discard on empty", cb.Available())
	}
}

func TestBlockExtractorSequential(t *testing.T) {
	cb := mustBuffer(t, 16)
	e, err := NewBlockExtractor(cb, 4, WindowNone)
	if err != nil {
		t.Fatal(err)
	}

	cb.Write(ramp(0, 10))
	for block := 0; block < 2; block++ {
		got, ok := e.Next()
		if !ok {
			t.Fatalf("Next() block %d ok = false", block)
		}
		for i, v := range got {
			if v != float32(block*4+i) {
				t.Fatalf("block %d [%d] = %v, want %d", block, i, v, block*4+i)
			}
		}
	}
	if _, ok := e.Next(); ok {
		t.Fatal("Next() with 2 samples left ok = true")
	}
	if e.Extracted() != 2 {
		t.Fatalf("Extracted() = %d, want 2", e.Extracted())
	}
}

func TestBlockExtractorViewAndWrap(t *testing.T) {
	cb := mustBuffer(t, 6)
	e, err := NewBlockExtractor(cb, 4, WindowNone)
	if err != nil {
		t.Fatal(err)
	}

	cb.Write(ramp(0, 4))
	view, _ := e.Next()
	if &view[0] != &cb.data[0] {
		t.Fatal("contiguous block should be a view into the buffer")
	}

	cb.Write(ramp(4, 4)) // occupies positions 4,5,0,1
	got, ok := e.Next()
	if !ok {
		t.Fatal("Next() ok = false")
	}
	if &got[0] != &e.scratch[0] {
		t.Fatal("wrapped block should be copied into scratch")
	}
	for i, v := range got {
		if v != float32(4+i) {
			t.Fatalf("got[%d] = %v, want %d", i, v, 4+i)
		}
	}
}

func TestBlockExtractorWindow(t *testing.T) {
	cb := mustBuffer(t, 8)
	e, err := NewBlockExtractor(cb, 8, WindowHann)
	if err != nil {
		t.Fatal(err)
	}
	ones := make([]float32, 8)
	for i := range ones {
		ones[i] = 1
	}
	cb.Write(ones)
	got, ok := e.Next()
	if !ok {
		t.Fatal("Next() ok = false")
	}
	if got[0] > 1e-6 || got[7] > 1e-6 {
		t.Fatalf("Hann edges = %v, %v; want ~0", got[0], got[7])
	}
	if got[3] < 0.9 {
		t.Fatalf("Hann centre = %v, want close to 1", got[3])
	}
}

func TestBlockExtractorSizes(t *testing.T) {
	cb := mustBuffer(t, 8)
	if _, err := NewBlockExtractor(cb, 0, WindowNone); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("block 0 error = %v", err)
	}
	if _, err := NewBlockExtractor(cb, 9, WindowNone); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("block 9 error = %v", err)
	}
	e, err := NewBlockExtractor(cb, 4, WindowHamming)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetBlockSize(8); err != nil || e.BlockSize() != 8 {
		t.Fatalf("SetBlockSize(8) = %v, BlockSize() = %d", err, e.BlockSize())
	}
	if err := e.SetBlockSize(16); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("SetBlockSize(16) error = %v", err)
	}
}

func TestParseWindowFunction(t *testing.T) {
	for _, w := range []WindowFunction{WindowNone, WindowHann, WindowHamming, WindowBlackman} {
		got, err := ParseWindowFunction(w.String())
		if err != nil || got != w {
			t.Fatalf("ParseWindowFunction(%q) = %v, %v", w.String(), got, err)
		}
	}
	if _, err := ParseWindowFunction("kaiser"); err == nil {
		t.Fatal("ParseWindowFunction(kaiser) error = nil")
	}
}
