package valuenet

import "github.com/pucteng/chessmcts/internal/board"

// NumFeatures is the per-perspective sparse input width (SPEC_FULL.md §4.3):
// 384 own + 384 opponent base planes, times 4 attacked/defended quadrants.
const NumFeatures = 3072

// threatMap returns the union of squares attacked by every piece of color,
// with the opposing king excluded from slider occupancy so pins and
// discovered threats still register (x-ray).
func threatMap(pos *board.Position, color board.Color) board.Bitboard {
	them := color.Other()
	occ := pos.AllOccupied &^ board.SquareBB(pos.KingSquare[them])

	var m board.Bitboard
	for bb := pos.Pieces[color][board.Pawn]; bb != 0; {
		sq := bb.PopLSB()
		m |= board.PawnAttacks(sq, color)
	}
	for bb := pos.Pieces[color][board.Knight]; bb != 0; {
		sq := bb.PopLSB()
		m |= board.KnightAttacks(sq)
	}
	diagonal := pos.Pieces[color][board.Bishop] | pos.Pieces[color][board.Queen]
	for bb := diagonal; bb != 0; {
		sq := bb.PopLSB()
		m |= board.BishopAttacks(sq, occ)
	}
	straight := pos.Pieces[color][board.Rook] | pos.Pieces[color][board.Queen]
	for bb := straight; bb != 0; {
		sq := bb.PopLSB()
		m |= board.RookAttacks(sq, occ)
	}
	if king := pos.Pieces[color][board.King]; king != 0 {
		m |= board.KingAttacks(king.LSB())
	}
	return m
}

// ActiveFeatures returns the indices (into a NumFeatures-wide sparse vector,
// 0 or 1 elsewhere) that are active for pos from perspective's point of view.
func ActiveFeatures(pos *board.Position, perspective board.Color) []int32 {
	them := perspective.Other()
	attackedByThem := threatMap(pos, them)
	defendedByUs := threatMap(pos, perspective)

	idx := make([]int32, 0, 32)
	for color := board.White; color <= board.Black; color++ {
		isOpponent := 0
		if color != perspective {
			isOpponent = 1
		}
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[color][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				relSq := sq
				if perspective == board.Black {
					relSq = sq.Mirror()
				}
				base := 384*isOpponent + 64*int(pt) + int(relSq)

				sqBB := board.SquareBB(sq)
				attacked := attackedByThem&sqBB != 0
				defended := defendedByUs&sqBB != 0

				offset := 0
				switch {
				case attacked && defended:
					offset = 2304
				case defended:
					offset = 1536
				case attacked:
					offset = 768
				}
				idx = append(idx, int32(base+offset))
			}
		}
	}
	return idx
}
