package search

import (
	"testing"

	"github.com/pucteng/chessmcts/internal/board"
)

func TestSubtreeBiasAccumulatesTowardObservedError(t *testing.T) {
	tb := NewSubtreeBiasTable()
	var corr float32
	for i := 0; i < 50; i++ {
		corr = tb.UpdateBias(board.White, 7, 0.2, 4)
	}
	if corr <= 0 {
		t.Fatalf("expected a positive running correction after repeated positive error, got %v", corr)
	}
	if corr >= biasLambda {
		t.Fatalf("correction should stay below lambda, got %v", corr)
	}
}

func TestSubtreeBiasBucketsAreIndependent(t *testing.T) {
	tb := NewSubtreeBiasTable()
	tb.UpdateBias(board.White, 1, 0.5, 4)
	if c := tb.UpdateBias(board.Black, 1, 0, 4); c != 0 {
		t.Fatalf("expected Black's bucket to start at zero correction, got %v", c)
	}
}

func TestSubtreeBiasResetClearsAllBuckets(t *testing.T) {
	tb := NewSubtreeBiasTable()
	tb.UpdateBias(board.White, 42, 0.3, 4)
	tb.Reset()
	if c := tb.UpdateBias(board.White, 42, 0, 1); c != 0 {
		t.Fatalf("expected zero correction after Reset, got %v", c)
	}
}
