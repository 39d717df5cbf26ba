// Package record provides the input-side domain model of the pipeline:
// molecule records with per-site pKa annotations and their protonation-state
// variants, plus the single-site records the splitter derives from them.
// Records are read-only once constructed; upstream tooling produces them and
// the pipeline only consumes.
package record

import (
	"fmt"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// PKaType classifies the direction of the proton-transfer reaction at a site.
type PKaType string

const (
	PKaAcidic PKaType = "acidic"
	PKaBasic  PKaType = "basic"
	// PKaUnknown is used when upstream tooling does not report a type.
	PKaUnknown PKaType = ""
)

// SiteAnnotation describes one ionizable site of a molecule: the reaction
// center atom, the measured or predicted pKa, and the two protonation-state
// variants of the parent structure.
//
// Invariant: Protonated and Deprotonated differ from each other only in
// protonation at AtomIndex, one transferable hydrogen and a localized
// charge change.
type SiteAnnotation struct {
	// SiteID identifies the site within its parent record; sites are
	// numbered in the order upstream tooling reports them.
	SiteID int `json:"site_id"`

	// AtomIndex is the reaction-center atom in the parent structure's
	// indexing (shared by both variants for all non-transferred atoms).
	AtomIndex int `json:"atom_index"`

	PKa  float64 `json:"pka"`
	Type PKaType `json:"pka_type,omitempty"`

	Protonated   *chem.Structure `json:"protonated"`
	Deprotonated *chem.Structure `json:"deprotonated"`
}

// Orient returns a copy of the annotation with Protonated/Deprotonated
// swapped if necessary so that the variant with the higher formal charge at
// the reaction center is the protonated one.  Upstream predictors report the
// pair in arbitrary order; orientation by charge comparison at the site atom
// makes it deterministic.
func (sa SiteAnnotation) Orient() (SiteAnnotation, error) {
	if sa.Protonated == nil || sa.Deprotonated == nil {
		return sa, errors.SkippedSite("site is missing a protonation variant").
			WithDetail(fmt.Sprintf("site=%d", sa.SiteID))
	}
	if sa.AtomIndex < 0 ||
		sa.AtomIndex >= sa.Protonated.NumAtoms() ||
		sa.AtomIndex >= sa.Deprotonated.NumAtoms() {
		return sa, errors.SkippedSite("site atom index out of range").
			WithDetail(fmt.Sprintf("site=%d atom=%d", sa.SiteID, sa.AtomIndex))
	}
	chargeA := sa.Protonated.Atoms[sa.AtomIndex].FormalCharge
	chargeB := sa.Deprotonated.Atoms[sa.AtomIndex].FormalCharge
	if chargeA < chargeB {
		sa.Protonated, sa.Deprotonated = sa.Deprotonated, sa.Protonated
	}
	return sa, nil
}

// Valid reports whether the annotation carries both variants and a plausible
// hydrogen difference.  The full correspondence check is the normalizer's
// job; Valid is the splitter's cheap gate.
func (sa SiteAnnotation) Valid() error {
	oriented, err := sa.Orient()
	if err != nil {
		return err
	}
	diff := oriented.Protonated.TotalHydrogens() - oriented.Deprotonated.TotalHydrogens()
	if diff != 1 {
		return errors.SkippedSite("variants do not differ by exactly one hydrogen").
			WithDetail(fmt.Sprintf("site=%d hydrogen_diff=%d", sa.SiteID, diff))
	}
	return nil
}

// MoleculeRecord is one input molecule: a parent structure and zero or more
// annotated ionizable sites.
type MoleculeRecord struct {
	// SourceID is the upstream identity of the molecule (e.g. a database
	// accession).  It is carried through to every derived sample.
	SourceID string `json:"source_id"`

	Name string `json:"name,omitempty"`

	Structure *chem.Structure `json:"structure"`

	Sites []SiteAnnotation `json:"sites"`
}

// CanonicalKey returns the parent molecule's canonical structural identity,
// the key the deduplicator matches against exclusion sets.
func (r *MoleculeRecord) CanonicalKey() string {
	return r.Structure.CanonicalKey()
}

// SingleSiteRecord is the splitter's output unit: the parent identity plus
// exactly one oriented site annotation.
type SingleSiteRecord struct {
	SourceID     string  `json:"source_id"`
	CanonicalKey string  `json:"canonical_key"`
	InputIndex   int     `json:"input_index"` // original position, for reproducible ordering
	Site         SiteAnnotation `json:"site"`
}

// SitePrediction is one entry of a prediction oracle's output.
type SitePrediction struct {
	AtomIndex    int
	PKa          float64
	Type         PKaType
	Protonated   *chem.Structure
	Deprotonated *chem.Structure
}
