// Package search implements the MCTS search core: the playout loop, PUCT
// child selection, and backup (SPEC_FULL.md §4.2).
//
// The playout loop and backup recursion are grounded on
// Elvenson-alphabeth/mcts/node.go's Select (same "Q + C*P*sqrt(N)/(1+n)"
// shape) and janpfeifer-hiveGo/ai/search/mcts.go's traverse/backup pair (the
// sign-flip walking back up a two-player zero-sum tree). The surrounding
// engine orchestration - stop-flag polling between playouts, an Info
// callback, depth/time/node stop predicates - is grounded on the reference
// engine's Engine.SearchWithLimits and its atomic.Bool stop flag, reduced
// from its multi-worker Lazy-SMP fan-out to the single loop SPEC_FULL.md §5
// mandates. Backup additionally folds in a pawn-structure-keyed bias
// correction (subtreebias.go), ported from
// original_source/src/subtree_bias.rs's SubtreeBiasTable.
package search

import (
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"

	"github.com/pucteng/chessmcts/internal/arena"
	"github.com/pucteng/chessmcts/internal/board"
	"github.com/pucteng/chessmcts/internal/cache"
	"github.com/pucteng/chessmcts/internal/policy"
	"github.com/pucteng/chessmcts/internal/valuenet"
)

const cpuct = float32(1.4142135623730951) // sqrt(2)

const maxPly = 256

// Info is one progress report, emitted periodically during a search and once
// more at its end.
type Info struct {
	Depth    int
	SelDepth int
	Nodes    uint64
	NPS      uint64
	TimeMs   int64
	ScoreCP  int
	PV       []board.Move
}

// Engine owns the tree arena, the transposition cache, the value network and
// the live game history, and runs playouts against them.
type Engine struct {
	net   *valuenet.Network
	tree  *arena.Arena
	tt    *cache.Cache
	tm    *TimeManager
	hist  *board.History
	bias  *SubtreeBiasTable
	stop  atomic.Bool
	nodes uint64

	// scratch buffers reused across playouts to avoid per-playout allocation.
	path     []arena.Handle
	hashes   []uint64
	pawnKeys []uint64
	stms     []board.Color
	moves    []board.Move
	undos    []board.UndoInfo

	hashMiB int

	baseHash uint64
	applied  []board.Move
}

// NewEngine builds an engine around net, sized to hashMiB mebibytes split
// between the node arena and the transposition cache.
func NewEngine(net *valuenet.Network, hashMiB int) *Engine {
	e := &Engine{
		net:  net,
		tm:   NewTimeManager(),
		bias: NewSubtreeBiasTable(),
	}
	e.resize(hashMiB)
	return e
}

// resize (re)allocates the arena and cache for a Hash-option value in MiB.
// Fifteen sixteenths go to the tree, one sixteenth to the leaf-value cache,
// the same kind of fixed split the reference's engine uses between its TT and
// pawn hash.
func (e *Engine) resize(hashMiB int) {
	if hashMiB < 1 {
		hashMiB = 1
	}
	e.hashMiB = hashMiB
	treeMiB := hashMiB * 15 / 16
	cacheMiB := hashMiB - treeMiB
	if treeMiB < 1 {
		treeMiB = 1
	}
	if cacheMiB < 1 {
		cacheMiB = 1
	}
	e.tree = arena.NewFromBudget(treeMiB)
	e.tt = cache.NewFromMiB(cacheMiB)
}

// SetHashSize implements "setoption name Hash value <n>": it reallocates the
// arena and cache, discarding any accumulated tree.
func (e *Engine) SetHashSize(mb int) {
	e.resize(mb)
	if e.hist != nil {
		e.tree.Reset(e.hist.GameState())
	}
}

// NewGame clears the transposition cache and the tree, as ucinewgame and
// "setoption name Clear Hash" both require.
func (e *Engine) NewGame() {
	e.tt.Clear()
	e.bias.Reset()
	if e.hist != nil {
		e.tree.Reset(e.hist.GameState())
	}
}

// SetPosition replays base and moves into the engine's live history,
// attempting to reuse the existing tree by walking matching move edges
// (equivalent to the board-identity match SPEC_FULL.md §4.2.4 describes:
// since two identical move sequences from the same base position always
// reach identical boards, matching on move_in edges is the cheap form of
// matching on the resulting board).
func (e *Engine) SetPosition(base *board.Position, moves []board.Move) {
	// len(moves) > len(e.applied) is required, not just >=: SPEC_FULL.md
	// §4.2.4 only defines reuse in terms of descending into a grandchild
	// (at least one new move deeper). Re-issuing the same position (zero new
	// moves) is not a descendant of itself and must miss, per the round-trip
	// testable property in SPEC_FULL.md §8 ("nodes 1" twice on the same
	// position reuses zero nodes).
	if e.hist != nil && e.baseHash == base.Hash && len(moves) > len(e.applied) && isPrefix(e.applied, moves) {
		for _, m := range moves[len(e.applied):] {
			e.descendIntoChild(m)
		}
		e.applied = moves
		return
	}

	e.hist = board.NewHistory(*base)
	for _, m := range moves {
		e.hist.Make(m)
	}
	e.tree.Reset(e.hist.GameState())
	e.baseHash = base.Hash
	e.applied = moves
}

func isPrefix(prev, next []board.Move) bool {
	if len(next) < len(prev) {
		return false
	}
	for i, m := range prev {
		if next[i] != m {
			return false
		}
	}
	return true
}

// descendIntoChild applies m to the live position and, if the current root
// has a child whose move_in is m, promotes that child to the new root
// (reusing its subtree); otherwise it resets to a fresh single-node root.
func (e *Engine) descendIntoChild(m board.Move) {
	root := e.tree.Root()
	first, count, err := e.tree.Children(root)
	e.hist.Make(m)

	if err != nil || count == 0 {
		e.tree.Reset(e.hist.GameState())
		return
	}
	for i := 0; i < count; i++ {
		h := arena.Handle(uint32(first) + uint32(i))
		if e.tree.Get(h).MoveIn == m {
			e.tree.PromoteRoot(h)
			return
		}
	}
	e.tree.Reset(e.hist.GameState())
}

// Stop requests that Search return after its current playout.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Nodes returns the number of playouts run across the lifetime of the engine.
func (e *Engine) Nodes() uint64 {
	return e.nodes
}

// Search runs playouts against limits until a stop condition fires, calling
// onInfo periodically (roughly every reportInterval) and once more with the
// final line. It returns the best move at the root.
func (e *Engine) Search(limits UCILimits, onInfo func(Info)) board.Move {
	e.stop.Store(false)
	pos := e.hist.Position()
	e.tm.Init(limits, pos.SideToMove, pos.FullMoveNumber*2)

	const reportInterval = 100 * time.Millisecond
	lastReport := time.Now()
	localNodes := uint64(0)
	maxDepthSeen := 0

	for !e.stop.Load() {
		depth := e.playout()
		localNodes++
		e.nodes++
		if depth > maxDepthSeen {
			maxDepthSeen = depth
		}

		if e.shouldStop(limits, localNodes, maxDepthSeen) {
			break
		}

		if onInfo != nil && time.Since(lastReport) >= reportInterval {
			onInfo(e.reportInfo(maxDepthSeen, localNodes))
			lastReport = time.Now()
		}
	}

	if onInfo != nil {
		onInfo(e.reportInfo(maxDepthSeen, localNodes))
	}

	return e.bestMove()
}

func (e *Engine) shouldStop(limits UCILimits, localNodes uint64, maxDepth int) bool {
	if limits.Nodes > 0 && localNodes >= limits.Nodes {
		return true
	}
	if limits.Depth > 0 && maxDepth >= limits.Depth {
		return true
	}
	if limits.Infinite {
		return false
	}
	return e.tm.ShouldStop()
}

func (e *Engine) reportInfo(maxDepth int, nodes uint64) Info {
	elapsed := e.tm.Elapsed()
	ms := elapsed.Milliseconds()
	var nps uint64
	if ms > 0 {
		nps = nodes * 1000 / uint64(ms)
	}
	q := e.bestChildQ()
	return Info{
		Depth:    avgDepth(maxDepth),
		SelDepth: maxDepth,
		Nodes:    nodes,
		NPS:      nps,
		TimeMs:   ms,
		ScoreCP:  qToCentipawns(q),
		PV:       e.principalVariation(),
	}
}

// avgDepth gives the depth field of an info line: the deepest descent of the
// search so far, at least 1. No running average of playout depths is kept.
func avgDepth(maxDepth int) int {
	if maxDepth < 1 {
		return 1
	}
	return maxDepth
}

// qToCentipawns converts a win probability to the UCI cp scale SPEC_FULL.md
// §6.1 defines: cp = -400 * ln((1-q)/q).
func qToCentipawns(q float32) int {
	return WDLToCentipawns(q)
}

// WDLToCentipawns converts a win probability in [0,1] to the UCI cp scale
// SPEC_FULL.md §6.1 defines: cp = -400 * ln((1-q)/q).
func WDLToCentipawns(q float32) int {
	if q <= 0 {
		q = 0.0001
	}
	if q >= 1 {
		q = 0.9999
	}
	cp := -400 * math32.Log((1-q)/q)
	return int(cp)
}

// Evaluate returns the value network's win-probability estimate for pos,
// consulting the transposition cache first (the same path a playout's leaf
// evaluation takes), for the UCI "eval" command.
func (e *Engine) Evaluate(pos *board.Position) float32 {
	return e.evaluate(pos)
}

// playout runs one descend/evaluate/expand/backup iteration and returns the
// depth (in plies) the descent reached.
func (e *Engine) playout() int {
	e.path = e.path[:0]
	e.hashes = e.hashes[:0]
	e.pawnKeys = e.pawnKeys[:0]
	e.stms = e.stms[:0]
	e.moves = e.moves[:0]
	e.undos = e.undos[:0]

	h := e.tree.Root()
	for ply := 0; ; ply++ {
		node := e.tree.Get(h)
		pos := e.hist.Position()
		e.path = append(e.path, h)
		e.hashes = append(e.hashes, pos.Hash)
		e.pawnKeys = append(e.pawnKeys, pos.PawnKey)
		e.stms = append(e.stms, pos.SideToMove)

		if node.Terminal() {
			value := node.GameState.Evaluate()
			e.backupAndUnwind(value)
			return ply
		}

		if ply >= maxPly {
			// Truncated only by the depth cap, not a decided outcome: this is
			// still an Ongoing leaf, so it gets a real evaluation rather than
			// GameState.Evaluate()'s undefined-for-Ongoing 0.5.
			value := e.evaluate(e.hist.Position())
			e.backupAndUnwind(value)
			return ply
		}

		first, count, err := e.tree.Children(h)
		if err != nil {
			e.tree.Flip()
			e.unwind()
			return ply
		}

		if count == 0 {
			if node.Visits == 0 {
				value := e.evaluate(e.hist.Position())
				e.backupAndUnwind(value)
			} else {
				value, err := e.expand(h, node)
				if err != nil {
					e.tree.Flip()
					e.unwind()
					return ply
				}
				e.backupAndUnwind(value)
			}
			return ply
		}

		child := e.selectChild(node, first, count)
		m := e.tree.Get(child).MoveIn
		undo := e.hist.Make(m)
		e.moves = append(e.moves, m)
		e.undos = append(e.undos, undo)
		h = child
	}
}

// selectChild picks the argmax-PUCT child among [first, first+count).
func (e *Engine) selectChild(parent *arena.Node, first arena.Handle, count int) arena.Handle {
	sqrtN := math32.Sqrt(float32(parent.Visits))
	fpu := float32(1) - parent.Q()

	best := first
	bestScore := float32(math32.Inf(-1))
	for i := 0; i < count; i++ {
		h := arena.Handle(uint32(first) + uint32(i))
		c := e.tree.Get(h)

		q := fpu
		if c.Visits > 0 {
			q = c.Q()
		}
		u := cpuct * c.Policy * sqrtN / float32(1+c.Visits)
		score := q + u
		if score > bestScore {
			bestScore = score
			best = h
		}
	}
	return best
}

// evaluate probes the transposition cache, falling back to the value
// network on a miss.
func (e *Engine) evaluate(pos *board.Position) float32 {
	if v, ok := e.tt.Probe(pos.Hash); ok {
		return v
	}
	return e.net.Evaluate(pos)
}

// expand materializes one child per legal move at h, with each child's
// GameState precomputed by making and unmaking the move, and returns h's own
// leaf value.
func (e *Engine) expand(h arena.Handle, node *arena.Node) (float32, error) {
	pos := e.hist.Position()
	value := e.evaluate(pos)

	ml := pos.GenerateLegalMoves()
	n := ml.Len()
	if n == 0 {
		return value, nil
	}

	pols := policy.Policies(pos, ml)
	first, err := e.tree.Allocate(n)
	if err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		m := pols[i].Move
		undo := e.hist.Make(m)
		gs := e.hist.GameState()
		e.hist.Unmake(m, undo)

		child := arena.Handle(uint32(first) + uint32(i))
		*e.tree.Get(child) = arena.Node{
			GameState:  gs,
			MoveIn:     m,
			Policy:     pols[i].Probability,
			FirstChild: arena.NoHandle,
		}
	}
	e.tree.SetChildren(h, first, n)
	return value, nil
}

// backupAndUnwind walks e.path in reverse applying SPEC_FULL.md §4.2.1 step
// 4, then restores the live position to the root.
func (e *Engine) backupAndUnwind(leafValue float32) {
	u := leafValue
	for i := len(e.path) - 1; i >= 0; i-- {
		e.tt.Insert(e.hashes[i], u)
		u = 1 - u

		node := e.tree.Get(e.path[i])
		if node.Visits > 0 {
			// The subtree-bias correction (ported from
			// original_source/src/subtree_bias.rs): how far this playout's
			// outcome diverges from the node's own average so far, folded
			// into a pawn-structure-keyed running correction and nudged back
			// into the value before it's backed up further.
			obsError := u - node.Q()
			u += e.bias.UpdateBias(e.stms[i], e.pawnKeys[i], obsError, int(node.Visits))
			u = clamp01(u)
		}
		node.Visits++
		node.TotalScore += u
	}
	e.unwind()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *Engine) unwind() {
	for i := len(e.moves) - 1; i >= 0; i-- {
		e.hist.Unmake(e.moves[i], e.undos[i])
	}
}

// bestMove returns the root child with the largest Q, unvisited children
// scored as -inf (SPEC_FULL.md §4.2.3).
func (e *Engine) bestMove() board.Move {
	h, ok := e.bestChild()
	if !ok {
		return board.NoMove
	}
	return e.tree.Get(h).MoveIn
}

func (e *Engine) bestChild() (arena.Handle, bool) {
	root := e.tree.Root()
	first, count, err := e.tree.Children(root)
	if err != nil {
		e.tree.Flip()
		first, count, err = e.tree.Children(e.tree.Root())
	}
	if err != nil || count == 0 {
		return arena.NoHandle, false
	}
	best := arena.NoHandle
	bestQ := float32(math32.Inf(-1))
	for i := 0; i < count; i++ {
		h := arena.Handle(uint32(first) + uint32(i))
		c := e.tree.Get(h)
		if c.Visits == 0 {
			continue
		}
		if q := c.Q(); q > bestQ {
			bestQ = q
			best = h
		}
	}
	if best == arena.NoHandle {
		// every child unvisited (degenerate: almost no playouts ran); fall
		// back to the highest-policy move rather than reporting no move.
		best = first
		bestPolicy := float32(-1)
		for i := 0; i < count; i++ {
			h := arena.Handle(uint32(first) + uint32(i))
			if p := e.tree.Get(h).Policy; p > bestPolicy {
				bestPolicy = p
				best = h
			}
		}
	}
	return best, true
}

func (e *Engine) bestChildQ() float32 {
	h, ok := e.bestChild()
	if !ok {
		return 0.5
	}
	return e.tree.Get(h).Q()
}

// principalVariation follows the best-Q rule recursively from the root.
func (e *Engine) principalVariation() []board.Move {
	var pv []board.Move
	h := e.tree.Root()
	for i := 0; i < maxPly; i++ {
		first, count, err := e.tree.Children(h)
		if err != nil || count == 0 {
			break
		}
		best := arena.NoHandle
		bestQ := float32(math32.Inf(-1))
		for j := 0; j < count; j++ {
			c := arena.Handle(uint32(first) + uint32(j))
			node := e.tree.Get(c)
			if node.Visits == 0 {
				continue
			}
			if q := node.Q(); q > bestQ {
				bestQ = q
				best = c
			}
		}
		if best == arena.NoHandle {
			break
		}
		pv = append(pv, e.tree.Get(best).MoveIn)
		h = best
	}
	return pv
}
