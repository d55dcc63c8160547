package search

import (
	"testing"

	"github.com/pucteng/chessmcts/internal/board"
	"github.com/pucteng/chessmcts/internal/valuenet"
)

func newTestEngine() *Engine {
	return NewEngine(valuenet.New(), 4)
}

func TestSearchReturnsLegalMove(t *testing.T) {
	e := newTestEngine()
	pos := board.NewPosition()
	e.SetPosition(pos, nil)

	best := e.Search(UCILimits{Nodes: 200}, nil)
	if best == board.NoMove {
		t.Fatalf("expected a move, got NoMove")
	}

	legal := pos.GenerateLegalMoves()
	found := false
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == best {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("search returned illegal move %s", best.String())
	}
}

func TestSearchStopsAtNodeLimit(t *testing.T) {
	e := newTestEngine()
	pos := board.NewPosition()
	e.SetPosition(pos, nil)

	e.Search(UCILimits{Nodes: 50}, nil)
	if e.Nodes() < 50 {
		t.Fatalf("expected at least 50 playouts, got %d", e.Nodes())
	}
}

func TestSearchOnCheckmateReturnsNoMove(t *testing.T) {
	e := newTestEngine()
	// Fool's mate final position: black just delivered mate, white to move.
	pos, err := board.ParseFEN("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	e.SetPosition(pos, nil)

	best := e.Search(UCILimits{Nodes: 10}, nil)
	if best != board.NoMove {
		t.Fatalf("expected NoMove on checkmate, got %s", best.String())
	}
}

func TestSetPositionReusesTreeAcrossMoves(t *testing.T) {
	e := newTestEngine()
	pos := board.NewPosition()
	e.SetPosition(pos, nil)
	e.Search(UCILimits{Nodes: 200}, nil)

	verify := pos.Copy()
	m := board.NewDoublePawnPush(board.E2, board.E4)
	verify.MakeMove(m)
	verify.UpdateCheckers()

	// Should not panic and should still search a legal move from the new position.
	e.SetPosition(pos, []board.Move{m})
	if v := e.tree.Get(e.tree.Root()).Visits; v == 0 {
		t.Fatalf("expected the searched e2e4 child to be reused as the new root, got zero visits")
	}
	best := e.Search(UCILimits{Nodes: 50}, nil)
	if best == board.NoMove {
		t.Fatalf("expected a move after tree reuse, got NoMove")
	}
	if !verify.GenerateLegalMoves().Contains(best) {
		t.Fatalf("search returned %s, which is not legal after e2e4", best.String())
	}
}

func TestSetPositionResendIsTreeReuseMiss(t *testing.T) {
	e := newTestEngine()
	pos := board.NewPosition()

	e.SetPosition(pos, nil)
	e.Search(UCILimits{Nodes: 1}, nil)

	// Re-issuing the identical position (zero new moves past e.applied) must
	// reset the tree, not descend into it: the root's accumulated visit count
	// from the first search must not survive into the second.
	e.SetPosition(pos, nil)
	if v := e.tree.Get(e.tree.Root()).Visits; v != 0 {
		t.Fatalf("expected zero root visits after re-sending the identical position, got %d", v)
	}

	e.Search(UCILimits{Nodes: 1}, nil)
	if v := e.tree.Get(e.tree.Root()).Visits; v == 0 {
		t.Fatalf("expected the second search to still run playouts against the reset tree")
	}
}

func TestWDLToCentipawnsMonotonic(t *testing.T) {
	low := WDLToCentipawns(0.1)
	mid := WDLToCentipawns(0.5)
	high := WDLToCentipawns(0.9)
	if !(low < mid && mid < high) {
		t.Fatalf("expected monotonic cp scale, got %d %d %d", low, mid, high)
	}
	if mid != 0 {
		t.Fatalf("expected cp(0.5) == 0, got %d", mid)
	}
}
