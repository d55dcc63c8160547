package valuenet

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// sectionSizes is the flat float32 count SPEC_FULL.md §6.2 specifies, in
// section order: feature-transformer weights+bias, then four dense
// layers' weights+bias.
var sectionSizes = []int{
	NumFeatures * transformerOut, transformerOut, // feature transformer
	l1In * hiddenWidth, hiddenWidth, // layer 1
	hiddenWidth * hiddenWidth, hiddenWidth, // layer 2
	hiddenWidth * hiddenWidth, hiddenWidth, // layer 3
	hiddenWidth * 1, 1, // layer 4
}

func readSection(r io.Reader, n int) ([]float32, error) {
	buf := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, errors.Wrapf(err, "reading %d float32 values", n)
	}
	return buf, nil
}

// LoadWeights populates n from the flat little-endian float32 file at path.
func (n *Network) LoadWeights(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening value network weights")
	}
	defer f.Close()
	return n.LoadWeightsFromReader(f)
}

// LoadWeightsFromReader populates n by reading sections in the fixed order
// SPEC_FULL.md §6.2 defines.
func (n *Network) LoadWeightsFromReader(r io.Reader) error {
	sections := make([][]float32, len(sectionSizes))
	for i, size := range sectionSizes {
		s, err := readSection(r, size)
		if err != nil {
			return errors.Wrapf(err, "value network section %d", i)
		}
		sections[i] = s
	}

	ftWeights, ftBias := sections[0], sections[1]
	for f := 0; f < NumFeatures; f++ {
		copy(n.transformer.weights[f][:], ftWeights[f*transformerOut:(f+1)*transformerOut])
	}
	copy(n.transformer.bias[:], ftBias)

	n.l1 = newDenseLayer(hiddenWidth, l1In, sections[2], sections[3])
	n.l2 = newDenseLayer(hiddenWidth, hiddenWidth, sections[4], sections[5])
	n.l3 = newDenseLayer(hiddenWidth, hiddenWidth, sections[6], sections[7])
	n.l4 = newDenseLayer(1, hiddenWidth, sections[8], sections[9])
	return nil
}
