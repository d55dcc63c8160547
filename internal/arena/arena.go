// Package arena implements the search tree's backing store: a fixed-capacity,
// two-half copying collector addressed by 32-bit handles.
//
// Grounded on the node-slice-plus-index allocator of Elvenson-alphabeth's
// mcts/tree.go (naughty-indexed Node storage) and the MiB-to-capacity sizing
// idiom of the reference engine's TranspositionTable, but the eviction policy
// itself - two halves, a high-bit half selector, and on-demand rehosting of
// child blocks that cross a flip - has no analogue in either: it is designed
// from scratch to give O(1) allocation and O(live) amortized reclaim without
// a free list, while keeping the root pinned at a fixed offset.
package arena

import (
	"github.com/pkg/errors"

	"github.com/pucteng/chessmcts/internal/board"
)

// ErrOutOfSpace is returned by Allocate when the active half has no room for
// the requested block. The caller should Flip and retry.
var ErrOutOfSpace = errors.New("arena: active half out of space")

// Handle addresses a Node slot: the top bit selects the half, the rest is the
// index within that half.
type Handle uint32

const halfBit = uint32(1) << 31

// NoHandle is the null handle, used for "no children" and "no parent".
const NoHandle Handle = Handle(^uint32(0))

func makeHandle(half, index int) Handle {
	h := uint32(index)
	if half == 1 {
		h |= halfBit
	}
	return Handle(h)
}

func (h Handle) half() int {
	if uint32(h)&halfBit != 0 {
		return 1
	}
	return 0
}

func (h Handle) index() int {
	return int(uint32(h) &^ halfBit)
}

// Node is one tree vertex. See the package doc and SPEC_FULL.md §3.2 for the invariants.
type Node struct {
	GameState   board.GameState
	MoveIn      board.Move
	Policy      float32
	Visits      uint32
	TotalScore  float32
	FirstChild  Handle
	NumChildren uint16
}

// Q returns the node's average backed-up value. Only meaningful when Visits > 0.
func (n *Node) Q() float32 {
	if n.Visits == 0 {
		return 0
	}
	return n.TotalScore / float32(n.Visits)
}

// Terminal reports whether n's game outcome is already decided.
func (n *Node) Terminal() bool {
	return n.GameState != board.Ongoing
}

// Arena is the two-half node store.
type Arena struct {
	halves   [2][]Node
	len      [2]int
	active   int
	capacity int // per half
}

// New allocates an arena with room for capacityPerHalf nodes in each half.
func New(capacityPerHalf int) *Arena {
	return &Arena{
		halves:   [2][]Node{make([]Node, capacityPerHalf), make([]Node, capacityPerHalf)},
		capacity: capacityPerHalf,
	}
}

// NewFromBudget sizes an arena from a total memory budget in mebibytes,
// reserving none for itself beyond the Node slices (the transposition cache's
// share is carved out by the caller before this is invoked), the way the
// reference's NewTranspositionTable turns a Hash-option MiB count into an
// entry count.
func NewFromBudget(totalMiB int) *Arena {
	const bytesPerNode = 24 // GameState+MoveIn+Policy+Visits+TotalScore+FirstChild+NumChildren, rounded up
	totalNodes := (totalMiB * 1024 * 1024) / bytesPerNode
	perHalf := totalNodes / 2
	if perHalf < 16 {
		perHalf = 16
	}
	return New(perHalf)
}

// Reset clears both halves and allocates a fresh empty root at slot 0 of the active half.
func (a *Arena) Reset(rootState board.GameState) Handle {
	a.len[0] = 0
	a.len[1] = 0
	a.active = 0
	root, _ := a.Allocate(1)
	node := a.Get(root)
	*node = Node{GameState: rootState, FirstChild: NoHandle}
	return root
}

// Root returns the canonical root handle: slot 0 of the active half.
func (a *Arena) Root() Handle {
	return makeHandle(a.active, 0)
}

// ActiveHalf reports which half (0 or 1) is currently active.
func (a *Arena) ActiveHalf() int {
	return a.active
}

// Allocate reserves n contiguous slots in the active half.
func (a *Arena) Allocate(n int) (Handle, error) {
	if n <= 0 {
		return NoHandle, errors.New("arena: allocate requires n > 0")
	}
	if a.len[a.active]+n > a.capacity {
		return NoHandle, ErrOutOfSpace
	}
	idx := a.len[a.active]
	a.len[a.active] += n
	return makeHandle(a.active, idx), nil
}

// Get returns a pointer to the node at h. The pointer is valid until the next Flip.
func (a *Arena) Get(h Handle) *Node {
	return &a.halves[h.half()][h.index()]
}

// Flip promotes the active half to frozen, clears the other half, and copies
// the root into slot 0 of the newly active half. Children of the root (and,
// transitively, of any node visited afterwards) still live in the frozen
// half and are rehosted lazily by Children.
func (a *Arena) Flip() {
	oldActive := a.active
	newActive := 1 - oldActive

	root := a.halves[oldActive][0]
	a.len[newActive] = 0
	a.halves[newActive][0] = root
	a.len[newActive] = 1
	a.active = newActive
}

// Children returns the (first, count) child block for h, rehosting it into
// the active half first if it currently lives in the frozen half. Returns
// ErrOutOfSpace if rehosting requires more room than the active half has; the
// caller should Flip and retry the whole playout.
func (a *Arena) Children(h Handle) (Handle, int, error) {
	node := a.Get(h)
	if node.NumChildren == 0 {
		return NoHandle, 0, nil
	}
	if node.FirstChild.half() == a.active {
		return node.FirstChild, int(node.NumChildren), nil
	}

	n := int(node.NumChildren)
	newFirst, err := a.Allocate(n)
	if err != nil {
		return NoHandle, 0, err
	}
	srcHalf, srcIdx := node.FirstChild.half(), node.FirstChild.index()
	copy(a.halves[newFirst.half()][newFirst.index():newFirst.index()+n], a.halves[srcHalf][srcIdx:srcIdx+n])
	// A copied child whose own block lies in the active half refers to slots
	// the last Flip cleared, so it drops that block and becomes a leaf again.
	for i := newFirst.index(); i < newFirst.index()+n; i++ {
		if c := &a.halves[newFirst.half()][i]; c.NumChildren > 0 && c.FirstChild.half() == a.active {
			c.FirstChild, c.NumChildren = NoHandle, 0
		}
	}
	node.FirstChild = newFirst
	return newFirst, n, nil
}

// SetChildren installs a freshly allocated child block on node h.
func (a *Arena) SetChildren(h, first Handle, count int) {
	node := a.Get(h)
	node.FirstChild = first
	node.NumChildren = uint16(count)
}

// PromoteRoot makes handle h the new root by copying it into slot 0 of the
// active half (from either half), used by tree reuse when the matched
// subtree isn't already there. h's own children block is left wherever it
// is; Children will rehost it lazily on first access, same as any other node.
func (a *Arena) PromoteRoot(h Handle) Handle {
	if h.index() == 0 && h.half() == a.active {
		return h
	}
	node := *a.Get(h)
	a.halves[a.active][0] = node
	return makeHandle(a.active, 0)
}
