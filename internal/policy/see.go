// Package policy derives move-selection probabilities from a hand-crafted,
// static-exchange-evaluation score, the way the reference engine's move
// orderer scored captures before ever growing a neural policy head.
package policy

import (
	"github.com/pucteng/chessmcts/internal/board"
)

// Piece values used only for the SEE swap algorithm, not for positional evaluation.
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// SEE (Static Exchange Evaluation) estimates the material result of a capture
// sequence initiated by m, in centipawns from the mover's perspective. A
// non-capture counts as capturing nothing, so it scores negative when the
// moved piece can be won on its destination square.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = PawnValue
	} else if victim := pos.PieceAt(to); victim != board.NoPiece {
		capturedValue = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += pieceValues[m.Promotion()] - PawnValue
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeGE reports whether SEE(pos, m) is at least threshold centipawns; this is
// the predicate §4.5 calls see(move, threshold).
func seeGE(pos *board.Position, m board.Move, threshold int) bool {
	return SEE(pos, m) >= threshold
}

func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := pieceValues[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if maxInt(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)
		attackerValue = pieceValues[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -maxInt(-gain[d-1], gain[d])
	}

	return gain[0]
}

func getLeastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn]
	pawnAtk := board.PawnAttacks(target, side.Other())
	if attackers := pawns & pawnAtk & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight]
	knightAtk := board.KnightAttacks(target)
	if attackers := knights & knightAtk & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishops := pos.Pieces[side][board.Bishop]
	bishopAtk := board.BishopAttacks(target, occupied)
	if attackers := bishops & bishopAtk & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rooks := pos.Pieces[side][board.Rook]
	rookAtk := board.RookAttacks(target, occupied)
	if attackers := rooks & rookAtk & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	queens := pos.Pieces[side][board.Queen]
	if attackers := queens & (bishopAtk | rookAtk) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	kingBB := pos.Pieces[side][board.King]
	kingAtk := board.KingAttacks(target)
	if attackers := kingBB & kingAtk & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
