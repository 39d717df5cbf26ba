package pipeline

import (
	"fmt"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Vocabulary fixes the finite attribute sets a dataset version encodes
// against.  Feature vector width is fully determined by the vocabulary, so
// two graphs encoded with the same version are always dimensionally
// compatible.  Values outside a vocabulary are encoding errors, never
// silently widened slots.
type Vocabulary struct {
	Version string

	Elements       []string
	FormalCharges  []int
	Hybridizations []chem.Hybridization
	HydrogenCounts []int
	BondOrders     []chem.BondOrder

	elementIdx map[string]int
	chargeIdx  map[int]int
	hybridIdx  map[chem.Hybridization]int
	hcountIdx  map[int]int
	bondIdx    map[chem.BondOrder]int
}

// vocabularyV1 mirrors the attribute ranges of common drug-like molecules.
var vocabularyV1 = &Vocabulary{
	Version:        "v1",
	Elements:       []string{"C", "N", "O", "S", "P", "F", "Cl", "Br", "I", "B", "Si", "H"},
	FormalCharges:  []int{-2, -1, 0, 1, 2},
	Hybridizations: []chem.Hybridization{chem.HybridS, chem.HybridSP, chem.HybridSP2, chem.HybridSP3, chem.HybridSP3D, chem.HybridSP3D2},
	HydrogenCounts: []int{0, 1, 2, 3, 4},
	BondOrders:     []chem.BondOrder{chem.BondSingle, chem.BondDouble, chem.BondTriple, chem.BondAromatic},
}

var vocabularies = map[string]*Vocabulary{
	"v1": vocabularyV1,
}

// VocabularyFor returns the registered vocabulary for a version string.
func VocabularyFor(version string) (*Vocabulary, error) {
	v, ok := vocabularies[version]
	if !ok {
		return nil, errors.New(errors.ErrCodeVocabularyMismatch,
			fmt.Sprintf("unknown vocabulary version %q", version))
	}
	v.buildIndexes()
	return v, nil
}

func (v *Vocabulary) buildIndexes() {
	if v.elementIdx != nil {
		return
	}
	v.elementIdx = make(map[string]int, len(v.Elements))
	for i, e := range v.Elements {
		v.elementIdx[e] = i
	}
	v.chargeIdx = make(map[int]int, len(v.FormalCharges))
	for i, c := range v.FormalCharges {
		v.chargeIdx[c] = i
	}
	v.hybridIdx = make(map[chem.Hybridization]int, len(v.Hybridizations))
	for i, h := range v.Hybridizations {
		v.hybridIdx[h] = i
	}
	v.hcountIdx = make(map[int]int, len(v.HydrogenCounts))
	for i, h := range v.HydrogenCounts {
		v.hcountIdx[h] = i
	}
	v.bondIdx = make(map[chem.BondOrder]int, len(v.BondOrders))
	for i, b := range v.BondOrders {
		v.bondIdx[b] = i
	}
}

// NodeWidth returns the per-atom feature vector width: the one-hot slots for
// element, charge, hybridization and hydrogen count, plus aromatic and ring
// flags.
func (v *Vocabulary) NodeWidth() int {
	return len(v.Elements) + len(v.FormalCharges) + len(v.Hybridizations) + len(v.HydrogenCounts) + 2
}

// EdgeWidth returns the per-edge feature vector width: bond order one-hot
// plus a ring flag.
func (v *Vocabulary) EdgeWidth() int {
	return len(v.BondOrders) + 1
}

// EncodeAtom returns the feature vector of one atom, or an encoding error
// naming the out-of-vocabulary attribute.
func (v *Vocabulary) EncodeAtom(a chem.Atom) ([]float32, error) {
	out := make([]float32, v.NodeWidth())
	off := 0

	i, ok := v.elementIdx[a.Element]
	if !ok {
		return nil, errors.Encoding("element not in vocabulary").
			WithDetail(fmt.Sprintf("element=%s version=%s", a.Element, v.Version))
	}
	out[off+i] = 1
	off += len(v.Elements)

	i, ok = v.chargeIdx[a.FormalCharge]
	if !ok {
		return nil, errors.Encoding("formal charge not in vocabulary").
			WithDetail(fmt.Sprintf("charge=%d version=%s", a.FormalCharge, v.Version))
	}
	out[off+i] = 1
	off += len(v.FormalCharges)

	i, ok = v.hybridIdx[a.Hybridization]
	if !ok {
		return nil, errors.Encoding("hybridization not in vocabulary").
			WithDetail(fmt.Sprintf("hybridization=%s version=%s", a.Hybridization, v.Version))
	}
	out[off+i] = 1
	off += len(v.Hybridizations)

	i, ok = v.hcountIdx[a.ImplicitH]
	if !ok {
		return nil, errors.Encoding("hydrogen count not in vocabulary").
			WithDetail(fmt.Sprintf("hydrogens=%d version=%s", a.ImplicitH, v.Version))
	}
	out[off+i] = 1
	off += len(v.HydrogenCounts)

	if a.Aromatic {
		out[off] = 1
	}
	if a.InRing {
		out[off+1] = 1
	}
	return out, nil
}

// EncodeBond returns the feature vector of one bond.
func (v *Vocabulary) EncodeBond(b chem.Bond) ([]float32, error) {
	out := make([]float32, v.EdgeWidth())
	i, ok := v.bondIdx[b.Order]
	if !ok {
		return nil, errors.Encoding("bond order not in vocabulary").
			WithDetail(fmt.Sprintf("order=%s version=%s", b.Order, v.Version))
	}
	out[i] = 1
	if b.InRing {
		out[len(v.BondOrders)] = 1
	}
	return out, nil
}
