package pipeline

import (
	"fmt"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Pair is a normalized protonation-state pair: both structures verified to
// differ only at the reaction site, with an explicit atom correspondence.
// When the transferred hydrogen is an explicit atom it sits at the terminal
// index of the protonated structure, so Correspondence is the identity over
// the shared atoms with the last entry mapping to -1.
type Pair struct {
	SourceID     string
	SiteID       int
	CanonicalKey string
	InputIndex   int

	PKa  float64
	Type record.PKaType

	Protonated   *chem.Structure
	Deprotonated *chem.Structure

	// Correspondence maps protonated atom index -> deprotonated atom
	// index; only the transferred hydrogen maps to -1.
	Correspondence []int

	// SiteAtom is the reaction-center index, valid in both structures.
	SiteAtom int
}

// Normalizer verifies that the two protonation states of a single-site
// record are the same molecule up to one proton transfer, and produces the
// atom correspondence between them.
type Normalizer struct {
	logger logging.Logger
}

func NewNormalizer(logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Normalizer{logger: logger.Named("normalizer")}
}

// Normalize checks the single-proton-difference invariant and builds the
// pair.  Two representations are accepted: equal atom counts (the hydrogen
// difference is implicit) and protonated carrying exactly one extra explicit
// hydrogen bonded to the site atom.  Anything else is a correspondence
// error.
func (n *Normalizer) Normalize(r *record.SingleSiteRecord) (*Pair, error) {
	prot, deprot := r.Site.Protonated, r.Site.Deprotonated
	site := r.Site.AtomIndex

	switch prot.NumAtoms() - deprot.NumAtoms() {
	case 0:
		return n.normalizeImplicit(r, prot, deprot, site)
	case 1:
		return n.normalizeExplicit(r, prot, deprot, site)
	default:
		return nil, errors.Correspondence("protonation states differ by more than one atom").
			WithDetail(fmt.Sprintf("source=%s site=%d atoms=%d/%d",
				r.SourceID, r.Site.SiteID, prot.NumAtoms(), deprot.NumAtoms()))
	}
}

// normalizeImplicit handles the equal-atom-count case: the correspondence is
// the identity, verified atom by atom.  Only the site atom may change its
// local state, and its implicit hydrogen count must drop by exactly one on
// deprotonation.
func (n *Normalizer) normalizeImplicit(r *record.SingleSiteRecord, prot, deprot *chem.Structure, site int) (*Pair, error) {
	if err := n.verifyIdentity(r, prot, deprot, site); err != nil {
		return nil, err
	}
	hDiff := prot.Atoms[site].ImplicitH - deprot.Atoms[site].ImplicitH
	if hDiff != 1 {
		return nil, errors.Correspondence("site atom does not lose exactly one implicit hydrogen").
			WithDetail(fmt.Sprintf("source=%s site=%d diff=%d", r.SourceID, r.Site.SiteID, hDiff))
	}

	corr := make([]int, prot.NumAtoms())
	for i := range corr {
		corr[i] = i
	}
	return n.pair(r, prot, deprot, corr, site), nil
}

// normalizeExplicit handles the extra-explicit-hydrogen case: find the
// hydrogen bonded to the site atom whose removal makes the remainder match
// the deprotonated structure, then reorder the protonated structure so that
// hydrogen occupies the terminal index.
func (n *Normalizer) normalizeExplicit(r *record.SingleSiteRecord, prot, deprot *chem.Structure, site int) (*Pair, error) {
	adj := prot.Neighbors()
	var tried int
	for _, nb := range adj[site] {
		if prot.Atoms[nb.Index].Element != "H" || nb.Order != chem.BondSingle {
			continue
		}
		tried++
		remainder, mapping := prot.WithoutAtom(nb.Index)
		remSite := mapping[site]
		if err := n.verifyIdentity(r, remainder, deprot, remSite); err != nil {
			continue
		}

		reordered, newSite := moveAtomToEnd(prot, nb.Index, site)
		corr := make([]int, reordered.NumAtoms())
		for i := 0; i < reordered.NumAtoms()-1; i++ {
			corr[i] = i
		}
		corr[reordered.NumAtoms()-1] = -1
		return n.pair(r, reordered, deprot, corr, newSite), nil
	}
	if tried == 0 {
		return nil, errors.Correspondence("no removable hydrogen bonded to site atom").
			WithDetail(fmt.Sprintf("source=%s site=%d atom=%d", r.SourceID, r.Site.SiteID, site))
	}
	return nil, errors.Correspondence("no hydrogen removal reproduces the deprotonated structure").
		WithDetail(fmt.Sprintf("source=%s site=%d candidates=%d", r.SourceID, r.Site.SiteID, tried))
}

// verifyIdentity checks that a and b describe the same molecule position by
// position: equal atom counts, matching environment signatures everywhere,
// matching local states everywhere except the site atom, and an identical
// bond set.
func (n *Normalizer) verifyIdentity(r *record.SingleSiteRecord, a, b *chem.Structure, site int) error {
	if a.NumAtoms() != b.NumAtoms() {
		return errors.Correspondence("atom counts differ").
			WithDetail(fmt.Sprintf("source=%s site=%d", r.SourceID, r.Site.SiteID))
	}
	if a.NumBonds() != b.NumBonds() {
		return errors.Correspondence("bond counts differ").
			WithDetail(fmt.Sprintf("source=%s site=%d", r.SourceID, r.Site.SiteID))
	}
	adjA, adjB := a.Neighbors(), b.Neighbors()
	for i := range a.Atoms {
		if sigA, sigB := a.EnvSignatureWith(adjA, i), b.EnvSignatureWith(adjB, i); sigA != sigB {
			return errors.Correspondence("atom environments differ off-site").
				WithDetail(fmt.Sprintf("source=%s site=%d atom=%d", r.SourceID, r.Site.SiteID, i))
		}
		if i == site {
			continue
		}
		if a.Atoms[i].LocalState() != b.Atoms[i].LocalState() {
			return errors.Correspondence("local state changes away from the reaction site").
				WithDetail(fmt.Sprintf("source=%s site=%d atom=%d", r.SourceID, r.Site.SiteID, i))
		}
	}
	return nil
}

func (n *Normalizer) pair(r *record.SingleSiteRecord, prot, deprot *chem.Structure, corr []int, site int) *Pair {
	return &Pair{
		SourceID:       r.SourceID,
		SiteID:         r.Site.SiteID,
		CanonicalKey:   r.CanonicalKey,
		InputIndex:     r.InputIndex,
		PKa:            r.Site.PKa,
		Type:           r.Site.Type,
		Protonated:     prot,
		Deprotonated:   deprot,
		Correspondence: corr,
		SiteAtom:       site,
	}
}

// moveAtomToEnd returns a copy of s with atom idx relocated to the terminal
// index, bonds remapped, plus the new index of the tracked atom.
func moveAtomToEnd(s *chem.Structure, idx, tracked int) (*chem.Structure, int) {
	n := s.NumAtoms()
	mapping := make([]int, n)
	atoms := make([]chem.Atom, 0, n)
	for i, a := range s.Atoms {
		if i == idx {
			continue
		}
		mapping[i] = len(atoms)
		atoms = append(atoms, a)
	}
	mapping[idx] = len(atoms)
	atoms = append(atoms, s.Atoms[idx])

	bonds := make([]chem.Bond, 0, len(s.Bonds))
	for _, b := range s.Bonds {
		bonds = append(bonds, chem.Bond{A: mapping[b.A], B: mapping[b.B], Order: b.Order, InRing: b.InRing})
	}
	return &chem.Structure{Atoms: atoms, Bonds: bonds}, mapping[tracked]
}
