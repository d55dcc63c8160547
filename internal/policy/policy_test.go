package policy

import (
	"testing"

	"github.com/pucteng/chessmcts/internal/board"
)

func TestPoliciesSumToOne(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	ml := pos.GenerateLegalMoves()
	pols := Policies(pos, ml)
	if len(pols) != ml.Len() {
		t.Fatalf("expected %d policies, got %d", ml.Len(), len(pols))
	}

	var sum float32
	for _, p := range pols {
		if p.Probability < 0 || p.Probability > 1 {
			t.Fatalf("probability out of range: %v", p.Probability)
		}
		sum += p.Probability
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected probabilities to sum to ~1, got %v", sum)
	}
}

func TestPoliciesEmptyMoveList(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	ml := board.NewMoveList()
	pols := Policies(pos, ml)
	if len(pols) != 0 {
		t.Fatalf("expected no policies for empty move list, got %d", len(pols))
	}
}

func TestSEEFavorsWinningCapture(t *testing.T) {
	// White pawn on e4 can capture a defended-only-by-nothing black pawn on d5.
	pos, err := board.ParseFEN("r1bqkbnr/pppnpppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	capture := board.NewCapture(board.E4, board.D5)
	if !seeGE(pos, capture, 1) {
		t.Fatalf("expected pawn takes undefended pawn to clear SEE >= 1")
	}
}
