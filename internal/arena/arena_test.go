package arena

import (
	"testing"

	"github.com/pucteng/chessmcts/internal/board"
)

func TestAllocateAndRoot(t *testing.T) {
	a := New(8)
	root := a.Reset(board.Ongoing)
	if root != a.Root() {
		t.Fatalf("root handle mismatch: %v vs %v", root, a.Root())
	}
	if root.index() != 0 || root.half() != 0 {
		t.Fatalf("root not at slot 0 of half 0: %+v", root)
	}
}

func TestAllocateOutOfSpace(t *testing.T) {
	a := New(4)
	a.Reset(board.Ongoing)
	if _, err := a.Allocate(10); err != ErrOutOfSpace {
		t.Fatalf("expected ErrOutOfSpace, got %v", err)
	}
}

func TestFlipRehostsChildren(t *testing.T) {
	a := New(8)
	root := a.Reset(board.Ongoing)

	first, err := a.Allocate(2)
	if err != nil {
		t.Fatal(err)
	}
	a.Get(first).MoveIn = board.NewMove(board.E2, board.E4)
	a.Get(first + 1).MoveIn = board.NewMove(board.D2, board.D4)
	a.SetChildren(root, first, 2)

	a.Flip()

	newRoot := a.Root()
	if newRoot.index() != 0 {
		t.Fatalf("expected root at index 0 after flip")
	}

	children, count, err := a.Children(newRoot)
	if err != nil {
		t.Fatalf("rehost failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 children, got %d", count)
	}
	if children.half() != a.ActiveHalf() {
		t.Fatalf("children not rehosted into active half")
	}
	if a.Get(children).MoveIn != board.NewMove(board.E2, board.E4) {
		t.Fatalf("rehosted child data corrupted")
	}
}

func TestPromoteRoot(t *testing.T) {
	a := New(8)
	root := a.Reset(board.Ongoing)
	child, _ := a.Allocate(1)
	a.Get(child).MoveIn = board.NewMove(board.G1, board.F3)
	a.SetChildren(root, child, 1)

	newRoot := a.PromoteRoot(child)
	if newRoot.index() != 0 {
		t.Fatalf("promoted root should sit at index 0")
	}
	if a.Get(newRoot).MoveIn != board.NewMove(board.G1, board.F3) {
		t.Fatalf("promoted root lost its data")
	}
}
