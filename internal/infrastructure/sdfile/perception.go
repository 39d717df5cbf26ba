package sdfile

import (
	"math"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
)

// defaultValences for implicit hydrogen perception.  Elements outside the
// table get no implicit hydrogens.
var defaultValences = map[string]int{
	"H": 1, "C": 4, "N": 3, "O": 2, "F": 1,
	"P": 3, "S": 2, "Cl": 1, "Br": 1, "I": 1,
	"B": 3, "Si": 4,
}

// perceive fills in the attributes the connection table does not carry:
// implicit hydrogen counts, hybridization, aromatic flags and ring
// membership.
func perceive(s *chem.Structure) {
	perceiveRings(s)

	order := make([]float64, s.NumAtoms())
	doubles := make([]int, s.NumAtoms())
	triples := make([]int, s.NumAtoms())
	aromatic := make([]bool, s.NumAtoms())
	for _, b := range s.Bonds {
		var o float64
		switch b.Order {
		case chem.BondSingle:
			o = 1
		case chem.BondDouble:
			o = 2
			doubles[b.A]++
			doubles[b.B]++
		case chem.BondTriple:
			o = 3
			triples[b.A]++
			triples[b.B]++
		case chem.BondAromatic:
			o = 1.5
			aromatic[b.A] = true
			aromatic[b.B] = true
		}
		order[b.A] += o
		order[b.B] += o
	}

	for i := range s.Atoms {
		a := &s.Atoms[i]
		a.Aromatic = aromatic[i]
		a.Hybridization = hybridization(a.Element, doubles[i], triples[i], aromatic[i])
		if a.ImplicitH == 0 {
			a.ImplicitH = implicitHydrogens(a.Element, a.FormalCharge, order[i])
		}
	}
}

func hybridization(element string, doubles, triples int, aromatic bool) chem.Hybridization {
	if element == "H" {
		return chem.HybridS
	}
	switch {
	case triples > 0 || doubles >= 2:
		return chem.HybridSP
	case doubles == 1 || aromatic:
		return chem.HybridSP2
	default:
		return chem.HybridSP3
	}
}

// implicitHydrogens estimates the hydrogen count from the default valence
// adjusted for formal charge.  Cationic N and P gain a bond; anionic O, S,
// N lose one; charged carbon loses one either way.
func implicitHydrogens(element string, charge int, bondSum float64) int {
	base, ok := defaultValences[element]
	if !ok {
		return 0
	}
	valence := base
	switch element {
	case "N", "P", "O", "S":
		valence += charge
	case "C", "B", "Si":
		if charge != 0 {
			valence--
		}
	}
	h := valence - int(math.Round(bondSum))
	if h < 0 {
		return 0
	}
	return h
}

// perceiveRings marks ring bonds and ring atoms.  A bond is in a ring iff it
// is not a bridge of the molecular graph.
func perceiveRings(s *chem.Structure) {
	n := s.NumAtoms()
	type edge struct{ to, id int }
	adj := make([][]edge, n)
	for id, b := range s.Bonds {
		adj[b.A] = append(adj[b.A], edge{to: b.B, id: id})
		adj[b.B] = append(adj[b.B], edge{to: b.A, id: id})
	}

	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridge := make([]bool, len(s.Bonds))
	timer := 0

	var dfs func(u, parentEdge int)
	dfs = func(u, parentEdge int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, e := range adj[u] {
			if e.id == parentEdge {
				continue
			}
			if disc[e.to] == -1 {
				dfs(e.to, e.id)
				if low[e.to] < low[u] {
					low[u] = low[e.to]
				}
				if low[e.to] > disc[u] {
					bridge[e.id] = true
				}
			} else if disc[e.to] < low[u] {
				low[u] = disc[e.to]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == -1 {
			dfs(i, -1)
		}
	}

	for id := range s.Bonds {
		if !bridge[id] {
			s.Bonds[id].InRing = true
			s.Atoms[s.Bonds[id].A].InRing = true
			s.Atoms[s.Bonds[id].B].InRing = true
		}
	}
}
