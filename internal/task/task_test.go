package task

import (
	"sync/atomic"
	"testing"
)

func TestSerialCoversRangeInOrder(t *testing.T) {
	var got []int
	Serial{}.ForEach(5, func(i int) { got = append(got, i) })
	for i, v := range got {
		if v != i {
			t.Fatalf("index %d visited as %d", i, v)
		}
	}
	if len(got) != 5 {
		t.Fatalf("visited %d indices, want 5", len(got))
	}
}

func TestPoolCoversRangeExactlyOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 16} {
		p := NewPool(workers, 1)
		counts := make([]int32, 1000)
		p.ForEach(len(counts), func(i int) { atomic.AddInt32(&counts[i], 1) })
		for i, c := range counts {
			if c != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, c)
			}
		}
	}
}

func TestPoolSmallWorkRunsInline(t *testing.T) {
	p := NewPool(8, 100)
	var got []int // safe only if execution is inline
	p.ForEach(10, func(i int) { got = append(got, i) })
	if len(got) != 10 {
		t.Fatalf("visited %d indices, want 10", len(got))
	}
}

func TestPoolZeroWork(t *testing.T) {
	NewPool(4, 1).ForEach(0, func(i int) { t.Fatal("fn called for empty range") })
}
