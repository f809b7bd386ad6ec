package local

import (
	"reflect"
	"testing"
)

func TestMeanPool(t *testing.T) {
	// Two rows, seqLen 3, dim 2. Second row has one padded position.
	b := batch{
		size:          2,
		seqLen:        3,
		attentionMask: []int64{1, 1, 1, 1, 1, 0},
	}
	hidden := []float32{
		1, 2, 3, 4, 5, 6,
		2, 0, 4, 2, 100, 100,
	}

	got := meanPool(hidden, b, 2)
	want := [][]float32{{3, 4}, {3, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("meanPool = %v, want %v", got, want)
	}
}

func TestMeanPoolAllMasked(t *testing.T) {
	b := batch{size: 1, seqLen: 2, attentionMask: []int64{0, 0}}
	got := meanPool([]float32{7, 7, 7, 7}, b, 2)
	if !reflect.DeepEqual(got, [][]float32{{0, 0}}) {
		t.Errorf("meanPool = %v, want zeros", got)
	}
}
