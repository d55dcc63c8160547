package search

import (
	"github.com/chewxy/math32"

	"github.com/pucteng/chessmcts/internal/board"
)

// SubtreeBiasTable is a pawn-structure-keyed running correction applied to
// backed-up values during the reverse walk in backupAndUnwind, ported from
// original_source/src/subtree_bias.rs's SubtreeBiasTable. It tracks, per
// side to move and pawn-hash bucket, how far a subtree's eventual backed-up
// value tends to diverge from the node's own earlier average - the same
// role Stockfish-family engines give a correction-history table, but keyed
// on pawn structure instead of move history.
type SubtreeBiasTable struct {
	table [2][biasEntries]biasEntry
}

type biasEntry struct {
	numeratorSum float32
	denomSum     float32
}

const (
	biasEntries = 16384
	biasAlpha   = 0.8
	biasLambda  = 0.35
)

// NewSubtreeBiasTable returns a zeroed table.
func NewSubtreeBiasTable() *SubtreeBiasTable {
	return &SubtreeBiasTable{}
}

// UpdateBias folds one observation into the (stm, pawnHash) bucket and
// returns the correction to apply to the value being backed up, exactly
// subtree_bias.rs's update_bias: each sample is weighted by
// child_visits^alpha so a subtree's bias estimate stabilizes as it
// accumulates visits, and the returned correction is scaled by lambda so it
// nudges rather than overrides the raw backed-up value.
func (t *SubtreeBiasTable) UpdateBias(stm board.Color, pawnHash uint64, obsError float32, childVisits int) float32 {
	e := &t.table[stm][pawnHash%biasEntries]
	weight := powf32(float32(childVisits), biasAlpha)
	e.numeratorSum += obsError * weight
	e.denomSum += weight
	if e.denomSum == 0 {
		return 0
	}
	return biasLambda * e.numeratorSum / e.denomSum
}

// Reset clears every bucket, the way subtree_bias.rs's reset() does on
// ucinewgame - the bias table is per-game learned state, not per-search.
func (t *SubtreeBiasTable) Reset() {
	t.table = [2][biasEntries]biasEntry{}
}

// powf32 is x^y for the small positive exponents biasAlpha uses; math32
// has no Pow, so this mirrors math.Pow's exp(y*log(x)) identity in float32.
func powf32(x, y float32) float32 {
	if x <= 0 {
		return 0
	}
	return math32.Exp(y * math32.Log(x))
}
