// SPDX-License-Identifier: MIT
package ringbuf

import (
	"fmt"
	"testing"
)

func fill(b *Buffer, from, to int) {
	for i := from; i < to; i++ {
		b.Push(float32(i))
	}
}

func TestPushBelowCapacity(t *testing.T) {
	b := New(8)
	fill(b, 0, 5)

	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	for i := range 5 {
		if got := b.At(i); got != float32(i) {
			t.Errorf("At(%d) = %v, want %d", i, got, i)
		}
	}
}

func TestPushEvictsOldest(t *testing.T) {
	tests := []struct {
		capacity int
		pushed   int
	}{
		{4, 4},
		{4, 5},
		{4, 9},
		{7, 100},
		{1, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap%d_push%d", tt.capacity, tt.pushed), func(t *testing.T) {
			b := New(tt.capacity)
			evicted := 0
			for i := range tt.pushed {
				if b.Push(float32(i)) {
					evicted++
				}
				if b.Len() > b.Cap() {
					t.Fatalf("Len() = %d exceeds Cap() = %d", b.Len(), b.Cap())
				}
			}

			wantEvicted := max(0, tt.pushed-tt.capacity)
			if evicted != wantEvicted {
				t.Errorf("evicted %d samples, want %d", evicted, wantEvicted)
			}

			got := b.Snapshot()
			for i, v := range got {
				want := float32(wantEvicted + i)
				if v != want {
					t.Errorf("Snapshot()[%d] = %v, want %v", i, v, want)
				}
			}
		})
	}
}

func TestCopyTail(t *testing.T) {
	b := New(6)
	fill(b, 0, 10) // holds 4..9, wrapped

	tests := []struct {
		n    int
		want []float32
	}{
		{0, []float32{}},
		{1, []float32{9}},
		{3, []float32{7, 8, 9}},
		{6, []float32{4, 5, 6, 7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("tail%d", tt.n), func(t *testing.T) {
			dst := make([]float32, tt.n)
			if n := b.CopyTail(dst); n != tt.n {
				t.Fatalf("CopyTail() = %d, want %d", n, tt.n)
			}
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Errorf("dst[%d] = %v, want %v", i, dst[i], tt.want[i])
				}
			}
		})
	}

	// Requesting more than held copies only what exists.
	short := New(6)
	fill(short, 0, 2)
	dst := []float32{-1, -1, -1}
	if n := short.CopyTail(dst); n != 2 {
		t.Fatalf("CopyTail() on short buffer = %d, want 2", n)
	}
	if dst[0] != 0 || dst[1] != 1 || dst[2] != -1 {
		t.Errorf("CopyTail() wrote %v, want [0 1 -1]", dst)
	}
}

func TestReset(t *testing.T) {
	b := New(3)
	fill(b, 0, 5)
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", b.Len())
	}
	b.Push(42)
	if b.At(0) != 42 {
		t.Errorf("At(0) after Reset+Push = %v, want 42", b.At(0))
	}
}

func TestAtOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out of range index")
		}
	}()
	New(2).At(0)
}

func TestPushHotPath(t *testing.T) {
	b := New(1024)
	allocs := testing.AllocsPerRun(100, func() {
		for i := range 2048 {
			b.Push(float32(i))
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push, got %.1f", allocs)
	}
}

func BenchmarkPush(b *testing.B) {
	buf := New(3072)
	b.ReportAllocs()
	for b.Loop() {
		buf.Push(0.5)
	}
}
