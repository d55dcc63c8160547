// Package valuenet implements the search core's value head (SPEC_FULL.md
// §4.3): a small feed-forward regressor over attack/defense-augmented
// piece-placement features, producing a win-probability in [0,1].
//
// The weight-file I/O idiom (sequential little-endian binary.Read calls into
// preallocated slices) is ported from sfnnue/nnue_common.go and
// internal/nnue/weights.go in the reference tree, adapted from their
// quantized int16/LEB128 encodings to the flat float32 layout SPEC_FULL.md
// §6.2 specifies. The dense layers are plain matrix-vector products done
// with gonum.org/v1/gonum/mat, the linear-algebra dependency Elvenson-alphabeth
// pulls in for its own value/policy heads, rather than hand-rolled loops.
package valuenet

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/mat"

	"github.com/pucteng/chessmcts/internal/board"
)

const (
	transformerOut = 768
	l1In           = transformerOut * 2 // 1536, perspective-concatenated
	hiddenWidth    = 16
)

// screlu is the network's sole activation: clamp to [0,1], then square.
func screlu(x float32) float32 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return x * x
}

// featureTransformer holds the shared per-feature weight rows applied
// identically to both perspectives (SPEC_FULL.md: "one per perspective, with
// bias" - the weights are shared, only the active feature set differs).
type featureTransformer struct {
	weights [NumFeatures][transformerOut]float32
	bias    [transformerOut]float32
}

func (ft *featureTransformer) forward(active []int32) [transformerOut]float32 {
	var out [transformerOut]float32
	copy(out[:], ft.bias[:])
	for _, f := range active {
		row := &ft.weights[f]
		for i := 0; i < transformerOut; i++ {
			out[i] += row[i]
		}
	}
	for i := range out {
		out[i] = screlu(out[i])
	}
	return out
}

// denseLayer is a plain affine layer (out x in) evaluated through gonum, with
// screlu applied to its output.
type denseLayer struct {
	weights *mat.Dense // out x in, row-major
	bias    []float64
	out     int
}

func newDenseLayer(out, in int, weights, bias []float32) *denseLayer {
	data := make([]float64, out*in)
	for i, v := range weights {
		data[i] = float64(v)
	}
	b := make([]float64, out)
	for i, v := range bias {
		b[i] = float64(v)
	}
	return &denseLayer{weights: mat.NewDense(out, in, data), bias: b, out: out}
}

func (d *denseLayer) forward(input []float32) []float32 {
	in := make([]float64, len(input))
	for i, v := range input {
		in[i] = float64(v)
	}
	inVec := mat.NewVecDense(len(in), in)
	var outVec mat.VecDense
	outVec.MulVec(d.weights, inVec)

	result := make([]float32, d.out)
	for i := 0; i < d.out; i++ {
		result[i] = screlu(float32(outVec.AtVec(i) + d.bias[i]))
	}
	return result
}

// Network is the full value head: feature transformer + four dense layers.
type Network struct {
	transformer *featureTransformer
	l1          *denseLayer // 1536 -> 16
	l2          *denseLayer // 16 -> 16
	l3          *denseLayer // 16 -> 16
	l4          *denseLayer // 16 -> 1
}

// New builds a network with zero weights; call LoadWeights before use.
func New() *Network {
	return &Network{
		transformer: &featureTransformer{},
		l1:          newDenseLayer(hiddenWidth, l1In, make([]float32, hiddenWidth*l1In), make([]float32, hiddenWidth)),
		l2:          newDenseLayer(hiddenWidth, hiddenWidth, make([]float32, hiddenWidth*hiddenWidth), make([]float32, hiddenWidth)),
		l3:          newDenseLayer(hiddenWidth, hiddenWidth, make([]float32, hiddenWidth*hiddenWidth), make([]float32, hiddenWidth)),
		l4:          newDenseLayer(1, hiddenWidth, make([]float32, hiddenWidth), make([]float32, 1)),
	}
}

// materialScale computes SPEC_FULL.md §4.3's material dampening factor,
// depressing scores in drawish material configurations.
func materialScale(pos *board.Position) float32 {
	pieceValue := [6]int{100, 320, 330, 500, 900, 0}
	var total int
	for color := board.White; color <= board.Black; color++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			total += pos.Pieces[color][pt].PopCount() * pieceValue[pt]
		}
	}
	return float32(700+total/32) / 1024
}

// Evaluate returns the win-probability in [0,1] for pos from the side to
// move's perspective.
func (n *Network) Evaluate(pos *board.Position) float32 {
	us := pos.SideToMove
	them := us.Other()

	stmFeatures := ActiveFeatures(pos, us)
	nstmFeatures := ActiveFeatures(pos, them)

	stmHidden := n.transformer.forward(stmFeatures)
	nstmHidden := n.transformer.forward(nstmFeatures)

	concat := make([]float32, l1In)
	copy(concat[:transformerOut], stmHidden[:])
	copy(concat[transformerOut:], nstmHidden[:])

	h1 := n.l1.forward(concat)
	h2 := n.l2.forward(h1)
	h3 := n.l3.forward(h2)
	out := n.l4.forward(h3)

	centipawns := out[0] * 400 * materialScale(pos)
	return sigmoid(centipawns, 400)
}

// sigmoid computes 1/(1+e^(-x/scale)), the WDL transform SPEC_FULL.md §4.3 names.
func sigmoid(x, scale float32) float32 {
	return 1 / (1 + math32.Exp(-x/scale))
}
