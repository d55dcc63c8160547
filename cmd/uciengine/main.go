// Command uciengine runs the MCTS chess engine as a UCI protocol handler,
// grounded on cmd/chessplay-uci/main.go's flag parsing and weights
// auto-discovery, re-pointed at the value-network weights file instead of
// Stockfish-format NNUE.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/pucteng/chessmcts/internal/search"
	"github.com/pucteng/chessmcts/internal/uci"
	"github.com/pucteng/chessmcts/internal/valuenet"
)

const defaultWeightsFile = "weights.bin"

var (
	weightsPath = flag.String("weights", "", "path to value network weights file")
	hashMiB     = flag.Int("hash", 32, "hash table size in MiB")
)

func main() {
	flag.Parse()

	net := valuenet.New()

	path := *weightsPath
	if path == "" {
		path = findWeightsFile()
	}
	if path != "" {
		if err := net.LoadWeights(path); err != nil {
			log.Printf("warning: failed to load weights from %s: %v (using zero-weight network)", path, err)
		}
	} else {
		log.Printf("warning: no weights file found (using zero-weight network)")
	}

	eng := search.NewEngine(net, *hashMiB)
	protocol := uci.New(eng)
	protocol.Run()
}

// findWeightsFile looks for the weights file in a few conventional
// locations, the way autoLoadNNUE walked a search path of NNUE directories.
func findWeightsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	candidates := []string{
		filepath.Join(".", defaultWeightsFile),
		filepath.Join(home, ".chessmcts", defaultWeightsFile),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
