// SPDX-License-Identifier: MIT
/*
Package ringbuf implements the bounded per-channel sample history used by the
ingestor and read by the analyzer.

A Buffer is a fixed-capacity FIFO of float32 samples. Storage is allocated
once at construction; pushing into a full buffer overwrites the oldest sample.

Thread Safety:
- None. A Buffer has exactly one writer and is read from the same goroutine.
*/
package ringbuf

// Buffer is a bounded FIFO of float32 samples. The oldest sample is evicted
// first whenever a push would exceed the capacity.
type Buffer struct {
	data []float32
	head int // index of the oldest sample
	size int // number of valid samples
}

// New allocates a Buffer holding at most capacity samples. Capacity must be
// positive.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer{data: make([]float32, capacity)}
}

// Push appends v and reports whether the oldest sample was evicted to make room.
func (b *Buffer) Push(v float32) bool {
	capacity := len(b.data)
	if b.size < capacity {
		b.data[(b.head+b.size)%capacity] = v
		b.size++
		return false
	}

	// Full: overwrite the oldest slot and advance head.
	b.data[b.head] = v
	b.head = (b.head + 1) % capacity
	return true
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of samples the buffer can hold.
func (b *Buffer) Cap() int { return len(b.data) }

// At returns the i-th oldest sample. It panics if i is out of range.
func (b *Buffer) At(i int) float32 {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.data[(b.head+i)%len(b.data)]
}

// CopyTail copies the most recent len(dst) samples into dst in chronological
// order and returns the number copied. When fewer samples are held, only the
// leading Len() elements of dst are written.
func (b *Buffer) CopyTail(dst []float32) int {
	n := min(len(dst), b.size)
	start := b.head + b.size - n
	capacity := len(b.data)

	// At most two contiguous runs.
	first := copy(dst[:n], b.data[start%capacity:min(capacity, start%capacity+n)])
	if first < n {
		copy(dst[first:n], b.data[:n-first])
	}
	return n
}

// Snapshot returns a chronological copy of the buffer contents.
func (b *Buffer) Snapshot() []float32 {
	out := make([]float32, b.size)
	b.CopyTail(out)
	return out
}

// Reset discards all samples without releasing storage.
func (b *Buffer) Reset() {
	b.head = 0
	b.size = 0
}
