package chem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// refinementRounds is the number of neighborhood-refinement iterations used
// by CanonicalKey.  Three rounds separate all structures the pipeline
// realistically sees; the key only needs to be representation-invariant, not
// a full graph-isomorphism certificate.
const refinementRounds = 3

// CanonicalKey returns a canonical structural identity for the molecule:
// equal for any atom-order permutation of the same structure, stable across
// runs and processes.  The deduplicator matches training records against the
// held-out reference sets on this key, so different input representations of
// the same molecule still collide.
//
// Construction: iterative neighborhood refinement (element, charge, implicit
// hydrogens, aromaticity seed labels; each round rehashes a label with the
// sorted multiset of neighbor label/bond-order pairs), then a SHA-256 digest
// over the sorted final label multiset and the sorted bond label multiset.
func (s *Structure) CanonicalKey() string {
	labels := make([]string, len(s.Atoms))
	for i, a := range s.Atoms {
		labels[i] = fmt.Sprintf("%s|%d|%d|%t", a.Element, a.FormalCharge, a.ImplicitH, a.Aromatic)
	}

	adj := s.Neighbors()
	for round := 0; round < refinementRounds; round++ {
		next := make([]string, len(labels))
		for i := range labels {
			nbr := make([]string, 0, len(adj[i]))
			for _, nb := range adj[i] {
				nbr = append(nbr, labels[nb.Index]+"~"+string(nb.Order))
			}
			sort.Strings(nbr)
			next[i] = shortHash(labels[i] + "#" + strings.Join(nbr, "+"))
		}
		labels = next
	}

	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	edgeLabels := make([]string, 0, len(s.Bonds))
	for _, b := range s.Bonds {
		la, lb := labels[b.A], labels[b.B]
		if lb < la {
			la, lb = lb, la
		}
		edgeLabels = append(edgeLabels, la+"-"+string(b.Order)+"-"+lb)
	}
	sort.Strings(edgeLabels)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(edgeLabels, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
