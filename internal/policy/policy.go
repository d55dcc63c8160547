package policy

import (
	"github.com/chewxy/math32"

	"github.com/pucteng/chessmcts/internal/board"
)

// MovePolicy pairs a move with its assigned probability.
type MovePolicy struct {
	Move        board.Move
	Probability float32
}

// Policies returns, for each legal move in ml, a softmax probability derived
// from the move's SEE-based raw score: seeGE(move, -100) + seeGE(move, 1),
// each term contributing 0 or 1. A move that wins material at essentially
// any threshold (>= 1cp) and doesn't lose at a generous margin (>= -100cp)
// scores 2; a move that clears only one of the two bars scores 1; a move
// that clears neither scores 0.
func Policies(pos *board.Position, ml *board.MoveList) []MovePolicy {
	n := ml.Len()
	out := make([]MovePolicy, n)
	if n == 0 {
		return out
	}

	raw := make([]float32, n)
	var maxRaw float32 = -1 << 30
	for i := 0; i < n; i++ {
		m := ml.Get(i)
		score := scoreOf(pos, m)
		raw[i] = score
		if score > maxRaw {
			maxRaw = score
		}
	}

	var sum float32
	exps := make([]float32, n)
	for i, r := range raw {
		e := math32.Exp(r - maxRaw)
		exps[i] = e
		sum += e
	}

	for i := 0; i < n; i++ {
		out[i] = MovePolicy{Move: ml.Get(i), Probability: exps[i] / sum}
	}
	return out
}

func scoreOf(pos *board.Position, m board.Move) float32 {
	var score float32
	if seeGE(pos, m, -100) {
		score++
	}
	if seeGE(pos, m, 1) {
		score++
	}
	return score
}
