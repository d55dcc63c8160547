package valuenet

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pucteng/chessmcts/internal/board"
)

func randomWeightsReader(seed uint32) *bytes.Reader {
	total := 0
	for _, s := range sectionSizes {
		total += s
	}
	buf := make([]float32, total)
	state := seed | 1
	for i := range buf {
		state = state*1664525 + 1013904223
		buf[i] = float32(int32(state)%1000) / 10000
	}
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, buf)
	return bytes.NewReader(b.Bytes())
}

func TestLoadWeightsAndEvaluate(t *testing.T) {
	net := New()
	if err := net.LoadWeightsFromReader(randomWeightsReader(42)); err != nil {
		t.Fatalf("LoadWeightsFromReader failed: %v", err)
	}

	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}

	wdl := net.Evaluate(pos)
	if wdl < 0 || wdl > 1 {
		t.Fatalf("expected WDL in [0,1], got %v", wdl)
	}
}

func TestActiveFeaturesInRange(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	for _, persp := range []board.Color{board.White, board.Black} {
		feats := ActiveFeatures(pos, persp)
		if len(feats) != 32 {
			t.Fatalf("expected 32 active features at start position, got %d", len(feats))
		}
		for _, f := range feats {
			if f < 0 || f >= NumFeatures {
				t.Fatalf("feature index %d out of range", f)
			}
		}
	}
}
