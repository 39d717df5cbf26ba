// Package chem provides the structural value types shared by the whole
// pipeline: atoms, bonds, structures, and the canonical structure key used
// for molecule-level identity.  The package performs no chemistry validation
// beyond graph-level consistency; protonation states handed to the pipeline
// are assumed chemically valid.
package chem

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Hybridization classifies an atom's orbital hybridization state.
type Hybridization string

const (
	HybridS     Hybridization = "s"
	HybridSP    Hybridization = "sp"
	HybridSP2   Hybridization = "sp2"
	HybridSP3   Hybridization = "sp3"
	HybridSP3D  Hybridization = "sp3d"
	HybridSP3D2 Hybridization = "sp3d2"
)

// BondOrder classifies a bond.
type BondOrder string

const (
	BondSingle   BondOrder = "single"
	BondDouble   BondOrder = "double"
	BondTriple   BondOrder = "triple"
	BondAromatic BondOrder = "aromatic"
)

// Atom is one node of a molecular structure.  Hydrogens may appear either as
// explicit atoms (Element "H") or folded into a heavy atom's ImplicitH count;
// both representations occur in upstream tooling and the pipeline handles
// either.
type Atom struct {
	Element       string        `json:"element"`
	FormalCharge  int           `json:"formal_charge"`
	Hybridization Hybridization `json:"hybridization"`
	Aromatic      bool          `json:"aromatic"`
	InRing        bool          `json:"in_ring"`
	ImplicitH     int           `json:"implicit_h"`
}

// Bond is one undirected edge of a molecular structure.  A < B is not
// required on input; Validate normalises nothing and rejects self-loops and
// duplicates.
type Bond struct {
	A      int       `json:"a"`
	B      int       `json:"b"`
	Order  BondOrder `json:"order"`
	InRing bool      `json:"in_ring"`
}

// Structure is an undirected attributed molecular graph.  Structures are
// value objects: pipeline stages never mutate one in place, they derive new
// ones.
type Structure struct {
	Atoms []Atom `json:"atoms"`
	Bonds []Bond `json:"bonds"`
}

// NumAtoms returns the number of explicit atoms.
func (s *Structure) NumAtoms() int { return len(s.Atoms) }

// NumBonds returns the number of bonds.
func (s *Structure) NumBonds() int { return len(s.Bonds) }

// Validate checks graph-level consistency: bond endpoints in range, no
// self-loops, no duplicate bonds, no negative implicit hydrogen counts.
func (s *Structure) Validate() error {
	seen := make(map[[2]int]struct{}, len(s.Bonds))
	for i, b := range s.Bonds {
		if b.A < 0 || b.A >= len(s.Atoms) || b.B < 0 || b.B >= len(s.Atoms) {
			return errors.Newf(errors.ErrCodeStructureInvalid,
				"bond %d endpoints (%d,%d) out of range for %d atoms", i, b.A, b.B, len(s.Atoms))
		}
		if b.A == b.B {
			return errors.Newf(errors.ErrCodeStructureInvalid, "bond %d is a self-loop on atom %d", i, b.A)
		}
		key := [2]int{b.A, b.B}
		if b.B < b.A {
			key = [2]int{b.B, b.A}
		}
		if _, dup := seen[key]; dup {
			return errors.Newf(errors.ErrCodeStructureInvalid, "duplicate bond between atoms %d and %d", key[0], key[1])
		}
		seen[key] = struct{}{}
	}
	for i, a := range s.Atoms {
		if a.Element == "" {
			return errors.Newf(errors.ErrCodeStructureInvalid, "atom %d has empty element", i)
		}
		if a.ImplicitH < 0 {
			return errors.Newf(errors.ErrCodeStructureInvalid, "atom %d has negative implicit hydrogen count", i)
		}
	}
	return nil
}

// TotalHydrogens counts every hydrogen in the structure, explicit H atoms
// and implicit counts alike.  The protonated variant of a pair always has
// exactly one more than the deprotonated variant.
func (s *Structure) TotalHydrogens() int {
	n := 0
	for _, a := range s.Atoms {
		if a.Element == "H" {
			n++
		}
		n += a.ImplicitH
	}
	return n
}

// NetCharge sums the formal charges of all atoms.
func (s *Structure) NetCharge() int {
	n := 0
	for _, a := range s.Atoms {
		n += a.FormalCharge
	}
	return n
}

// Neighbors returns, for every atom index, the indices of its bonded
// neighbors together with the connecting bond.  The result is freshly
// allocated on every call.
func (s *Structure) Neighbors() [][]Neighbor {
	adj := make([][]Neighbor, len(s.Atoms))
	for _, b := range s.Bonds {
		adj[b.A] = append(adj[b.A], Neighbor{Index: b.B, Order: b.Order})
		adj[b.B] = append(adj[b.B], Neighbor{Index: b.A, Order: b.Order})
	}
	return adj
}

// Neighbor pairs an adjacent atom index with the order of the connecting bond.
type Neighbor struct {
	Index int
	Order BondOrder
}

// Degree returns the number of explicit bonds incident to atom i.
func (s *Structure) Degree(i int) int {
	d := 0
	for _, b := range s.Bonds {
		if b.A == i || b.B == i {
			d++
		}
	}
	return d
}

// WithoutAtom returns a copy of the structure with atom idx and its incident
// bonds removed, plus the index mapping old→new for the surviving atoms
// (mapping[idx] is -1).
func (s *Structure) WithoutAtom(idx int) (*Structure, []int) {
	mapping := make([]int, len(s.Atoms))
	atoms := make([]Atom, 0, len(s.Atoms)-1)
	for i, a := range s.Atoms {
		if i == idx {
			mapping[i] = -1
			continue
		}
		mapping[i] = len(atoms)
		atoms = append(atoms, a)
	}
	bonds := make([]Bond, 0, len(s.Bonds))
	for _, b := range s.Bonds {
		if b.A == idx || b.B == idx {
			continue
		}
		bonds = append(bonds, Bond{A: mapping[b.A], B: mapping[b.B], Order: b.Order, InRing: b.InRing})
	}
	return &Structure{Atoms: atoms, Bonds: bonds}, mapping
}

// EnvSignature returns the invariant local-environment signature of atom i:
// element, degree, ring membership, and the sorted multiset of neighbor
// (element, bond order) pairs.  Formal charge, hybridization and hydrogen
// counts are excluded: those are the attributes a protonation event changes
// at the reaction site.
func (s *Structure) EnvSignature(i int) string {
	adj := s.Neighbors()
	return envSignature(s, adj, i)
}

// EnvSignatureWith is EnvSignature with a caller-supplied adjacency list,
// for loops that would otherwise rebuild it per atom.
func (s *Structure) EnvSignatureWith(adj [][]Neighbor, i int) string {
	return envSignature(s, adj, i)
}

func envSignature(s *Structure, adj [][]Neighbor, i int) string {
	a := s.Atoms[i]
	parts := make([]string, 0, len(adj[i]))
	for _, nb := range adj[i] {
		n := s.Atoms[nb.Index]
		parts = append(parts, fmt.Sprintf("%s:%s", n.Element, nb.Order))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s|d%d|r%t|%s", a.Element, len(adj[i]), a.InRing, strings.Join(parts, ","))
}

// LocalState captures the mutable protonation-sensitive attributes of an
// atom: formal charge, implicit hydrogen count, and hybridization.  The
// normalizer compares LocalStates to count how many atoms changed between
// the two protonation states.
func (a Atom) LocalState() string {
	return fmt.Sprintf("c%d|h%d|%s", a.FormalCharge, a.ImplicitH, a.Hybridization)
}
