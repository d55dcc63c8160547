// Package uci implements the Universal Chess Interface protocol surface
// (SPEC_FULL.md §6.1), grounded on the reference engine's internal/uci/uci.go
// line-oriented scanner/dispatch loop and its "position"/"go"/"setoption"
// handling, re-wired onto the MCTS search core instead of the reference's
// alpha-beta engine.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/pucteng/chessmcts/internal/board"
	"github.com/pucteng/chessmcts/internal/policy"
	"github.com/pucteng/chessmcts/internal/search"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine *search.Engine
	base   *board.Position
	moves  []board.Move

	searching   bool
	searchDone  chan struct{}
	profileFile *os.File
}

// New creates a new UCI protocol handler around eng.
func New(eng *search.Engine) *UCI {
	return &UCI{
		engine: eng,
		base:   board.NewPosition(),
	}
}

// Run reads commands from stdin until EOF or "quit".
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
			return
		case "setoption":
			u.handleSetOption(args)
		case "d":
			u.handleDebugPrint()
		case "eval":
			u.handleEval()
		case "bench":
			u.handleBench()
		case "perft":
			u.handlePerft(args)
		default:
			fmt.Printf("info string unknown command: %s\n", cmd)
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Println("id name ChessMCTS")
	fmt.Println("id author ChessMCTS Team")
	fmt.Println()
	fmt.Println("option name Hash type spin default 32 min 1 max 16384")
	fmt.Println("option name Threads type spin default 1 min 1 max 1")
	fmt.Println("uciok")
}

func (u *UCI) handleNewGame() {
	u.engine.NewGame()
	u.base = board.NewPosition()
	u.moves = nil
}

// handlePosition parses "position [startpos|fen <fen>] [moves <m>…]".
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var moveStart int
	switch args[0] {
	case "startpos":
		u.base = board.NewPosition()
		moveStart = 1
	case "fen":
		end := len(args)
		for i := 1; i < len(args); i++ {
			if args[i] == "moves" {
				end = i
				break
			}
		}
		fenStr := strings.Join(args[1:end], " ")
		if err := board.ValidateFEN(fenStr); err != nil {
			fmt.Fprintf(os.Stderr, "info string invalid FEN: %v\n", err)
			return
		}
		pos, err := board.ParseFEN(fenStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string invalid FEN: %v\n", err)
			return
		}
		u.base = pos
		moveStart = end
	default:
		return
	}

	for i, a := range args {
		if a == "moves" {
			moveStart = i + 1
			break
		}
	}

	u.moves = nil
	if moveStart < len(args) {
		replay := u.base.Copy()
		for _, moveStr := range args[moveStart:] {
			m := parseMove(replay, moveStr)
			if m == board.NoMove {
				fmt.Fprintf(os.Stderr, "info string invalid move: %s\n", moveStr)
				return
			}
			replay.MakeMove(m)
			replay.UpdateCheckers()
			u.moves = append(u.moves, m)
		}
	}

	u.engine.SetPosition(u.base, u.moves)
}

// parseMove converts a UCI coordinate-notation move string to a board.Move
// by matching it against pos's legal moves.
func parseMove(pos *board.Position, s string) board.Move {
	if len(s) < 4 {
		return board.NoMove
	}
	from, err := board.ParseSquare(s[0:2])
	if err != nil {
		return board.NoMove
	}
	to, err := board.ParseSquare(s[2:4])
	if err != nil {
		return board.NoMove
	}

	var promo board.PieceType
	if len(s) == 5 {
		switch s[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if promo != 0 {
			if m.IsPromotion() && m.Promotion() == promo {
				return m
			}
			continue
		}
		if !m.IsPromotion() {
			return m
		}
	}
	return board.NoMove
}

// goOptions holds parsed "go" command arguments.
type goOptions struct {
	limits search.UCILimits
}

func (u *UCI) parseGoOptions(args []string) goOptions {
	var opts goOptions
	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "depth":
			opts.limits.Depth, _ = strconv.Atoi(next())
		case "nodes":
			n, _ := strconv.ParseUint(next(), 10, 64)
			opts.limits.Nodes = n
		case "movetime":
			ms, _ := strconv.Atoi(next())
			opts.limits.MoveTime = time.Duration(ms) * time.Millisecond
		case "infinite":
			opts.limits.Infinite = true
		case "ponder":
			opts.limits.Ponder = true
		case "wtime":
			ms, _ := strconv.Atoi(next())
			opts.limits.Time[board.White] = time.Duration(ms) * time.Millisecond
		case "btime":
			ms, _ := strconv.Atoi(next())
			opts.limits.Time[board.Black] = time.Duration(ms) * time.Millisecond
		case "winc":
			ms, _ := strconv.Atoi(next())
			opts.limits.Inc[board.White] = time.Duration(ms) * time.Millisecond
		case "binc":
			ms, _ := strconv.Atoi(next())
			opts.limits.Inc[board.Black] = time.Duration(ms) * time.Millisecond
		case "movestogo":
			opts.limits.MovesToGo, _ = strconv.Atoi(next())
		case "mate":
			next() // unimplemented, consume the argument and ignore
		}
	}
	return opts
}

func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	u.searching = true
	u.searchDone = make(chan struct{})

	go func() {
		defer close(u.searchDone)
		best := u.engine.Search(opts.limits, u.sendInfo)
		u.searching = false
		if best == board.NoMove {
			fmt.Println("bestmove 0000")
			return
		}
		fmt.Printf("bestmove %s\n", best.String())
	}()
}

func (u *UCI) sendInfo(info search.Info) {
	var parts []string
	parts = append(parts, fmt.Sprintf("time %d", info.TimeMs))
	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	parts = append(parts, fmt.Sprintf("seldepth %d", info.SelDepth))
	parts = append(parts, fmt.Sprintf("score cp %d", info.ScoreCP))
	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("nps %d", info.NPS))
	if len(info.PV) > 0 {
		strs := make([]string, len(info.PV))
		for i, m := range info.PV {
			strs[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(strs, " "))
	}
	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

func (u *UCI) handleStop() {
	if u.searching {
		u.engine.Stop()
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
	}
}

func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName, readingValue := false, false
	for _, a := range args {
		switch a {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += a
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += a
			}
		}
	}

	switch strings.ToLower(name) {
	case "hash":
		if n, err := strconv.Atoi(value); err == nil {
			u.engine.SetHashSize(n)
		}
	case "clear hash":
		u.engine.NewGame()
	case "threads":
		// accepted, ignored - SPEC_FULL.md §5 mandates a single search loop.
	case "cpuprofile":
		u.toggleProfile(value)
	}
}

func (u *UCI) toggleProfile(path string) {
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		u.profileFile = nil
	}
	if path == "" || path == "stop" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string failed to create profile: %v\n", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "info string failed to start profile: %v\n", err)
		return
	}
	u.profileFile = f
}

func (u *UCI) currentPosition() *board.Position {
	pos := u.base.Copy()
	for _, m := range u.moves {
		pos.MakeMove(m)
		pos.UpdateCheckers()
	}
	return pos
}

func (u *UCI) handleDebugPrint() {
	pos := u.currentPosition()
	fmt.Println(pos.String())

	ml := pos.GenerateLegalMoves()
	pols := policy.Policies(pos, ml)
	for _, mp := range pols {
		fmt.Printf("%s: policy=%.4f\n", mp.Move.String(), mp.Probability)
	}
}

func (u *UCI) handleEval() {
	pos := u.currentPosition()
	wdl := u.engine.Evaluate(pos)
	fmt.Printf("wdl %.4f cp %d\n", wdl, search.WDLToCentipawns(wdl))
}

func (u *UCI) handleBench() {
	pos := board.NewPosition()
	u.engine.SetPosition(pos, nil)
	start := time.Now()
	limits := search.UCILimits{Nodes: 50000}
	u.engine.Search(limits, nil)
	elapsed := time.Since(start)
	fmt.Printf("%d nodes %.0f nps\n", u.engine.Nodes(), float64(u.engine.Nodes())/elapsed.Seconds())
}

func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}
	pos := u.currentPosition()
	start := time.Now()
	nodes := perft(pos, depth)
	elapsed := time.Since(start)
	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}

func perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	ml := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(ml.Len())
	}
	var nodes uint64
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		undo := pos.MakeMove(m)
		pos.UpdateCheckers()
		nodes += perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
		pos.UpdateCheckers()
	}
	return nodes
}
