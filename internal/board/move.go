package board

import "fmt"

// Move encodes a chess move in 16 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-15: flag, discriminating the disposition of the move (see Flag* consts)
//
// Unlike a 2-bit flag + separate promotion field, the flag space itself
// distinguishes promotion piece and capture-vs-quiet, so no other move bits
// need to be consulted to answer "is this a capture" or "what does it promote
// to" - both fall out of Flag() alone.
type Move uint16

// Move flags. Sixteen values are available; fourteen are used.
const (
	FlagNormal Move = iota
	FlagDoublePawnPush
	FlagCastleKingside
	FlagCastleQueenside
	FlagEnPassant
	FlagCapture
	FlagPromoKnight
	FlagPromoBishop
	FlagPromoRook
	FlagPromoQueen
	FlagCapturePromoKnight
	FlagCapturePromoBishop
	FlagCapturePromoRook
	FlagCapturePromoQueen
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

var promoPieceByFlag = [4]PieceType{Knight, Bishop, Rook, Queen}

func promoFlag(capture bool, promo PieceType) Move {
	idx := Move(promo - Knight)
	if capture {
		return FlagCapturePromoKnight + idx
	}
	return FlagPromoKnight + idx
}

func pack(from, to Square, flag Move) Move {
	return Move(from) | Move(to)<<6 | flag<<12
}

// NewMove creates a quiet (non-capture, non-special) move.
func NewMove(from, to Square) Move {
	return pack(from, to, FlagNormal)
}

// NewDoublePawnPush creates a two-square pawn advance, setting the en passant target.
func NewDoublePawnPush(from, to Square) Move {
	return pack(from, to, FlagDoublePawnPush)
}

// NewCapture creates a normal (non-en-passant, non-promotion) capture.
func NewCapture(from, to Square) Move {
	return pack(from, to, FlagCapture)
}

// NewPromotion creates a quiet promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return pack(from, to, promoFlag(false, promo))
}

// NewCapturePromotion creates a promotion that also captures.
func NewCapturePromotion(from, to Square, promo PieceType) Move {
	return pack(from, to, promoFlag(true, promo))
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return pack(from, to, FlagEnPassant)
}

// NewCastling creates a castling move (king's movement); side is inferred from direction.
func NewCastling(from, to Square) Move {
	if to > from {
		return pack(from, to, FlagCastleKingside)
	}
	return pack(from, to, FlagCastleQueenside)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Flag returns the move's disposition flag.
func (m Move) Flag() Move {
	return (m >> 12) & 0xF
}

// Promotion returns the promotion piece type. Only valid if IsPromotion() is true.
func (m Move) Promotion() PieceType {
	f := m.Flag()
	if f >= FlagCapturePromoKnight {
		return promoPieceByFlag[f-FlagCapturePromoKnight]
	}
	return promoPieceByFlag[f-FlagPromoKnight]
}

// IsPromotion returns true if this is a promotion move (quiet or capturing).
func (m Move) IsPromotion() bool {
	f := m.Flag()
	return f >= FlagPromoKnight
}

// IsCastling returns true if this is a castling move, either side.
func (m Move) IsCastling() bool {
	f := m.Flag()
	return f == FlagCastleKingside || f == FlagCastleQueenside
}

// IsCastlingKingside returns true if this is a kingside castle.
func (m Move) IsCastlingKingside() bool {
	return m.Flag() == FlagCastleKingside
}

// IsCastlingQueenside returns true if this is a queenside castle.
func (m Move) IsCastlingQueenside() bool {
	return m.Flag() == FlagCastleQueenside
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsDoublePawnPush returns true if this is a two-square pawn advance.
func (m Move) IsDoublePawnPush() bool {
	return m.Flag() == FlagDoublePawnPush
}

// IsCapture returns true if this move captures a piece, from the flag alone.
func (m Move) IsCapture() bool {
	switch m.Flag() {
	case FlagCapture, FlagEnPassant, FlagCapturePromoKnight, FlagCapturePromoBishop, FlagCapturePromoRook, FlagCapturePromoQueen:
		return true
	default:
		return false
	}
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// ParseMove parses a UCI format move string.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	isCapture := !pos.IsEmpty(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		if isCapture {
			return NewCapturePromotion(from, to, promo), nil
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}

	pt := piece.Type()

	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}

	if pt == Pawn && to == pos.EnPassant {
		return NewEnPassant(from, to), nil
	}

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		return NewDoublePawnPush(from, to), nil
	}

	if isCapture {
		return NewCapture(from, to), nil
	}

	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores information needed to undo a move.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	Checkers       Bitboard
	KingSquare     [2]Square      // King positions before move
	Pieces         [2][6]Bitboard // Full piece bitboards for reliable restoration
	Occupied       [2]Bitboard    // Occupancy bitboards
	AllOccupied    Bitboard       // All pieces
	Valid          bool           // True if move was actually applied
}
