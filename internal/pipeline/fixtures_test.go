package pipeline

import (
	"context"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
)

// acetate is the deprotonated form of acetic acid with implicit hydrogens.
// Atom 2 is the charged carboxylate oxygen.
func acetate() *chem.Structure {
	return &chem.Structure{
		Atoms: []chem.Atom{
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 3},
			{Element: "C", Hybridization: chem.HybridSP2},
			{Element: "O", FormalCharge: -1, Hybridization: chem.HybridSP3},
			{Element: "O", Hybridization: chem.HybridSP2},
		},
		Bonds: []chem.Bond{
			{A: 0, B: 1, Order: chem.BondSingle},
			{A: 1, B: 2, Order: chem.BondSingle},
			{A: 1, B: 3, Order: chem.BondDouble},
		},
	}
}

func aceticAcid() *chem.Structure {
	s := acetate()
	s.Atoms[2].FormalCharge = 0
	s.Atoms[2].ImplicitH = 1
	return s
}

// methylAmmonium / methylAmine use explicit hydrogens on the nitrogen.
// Atom 1 is the site nitrogen; atoms 2..4 are its hydrogens in the
// protonated form.
func methylAmmonium() *chem.Structure {
	return &chem.Structure{
		Atoms: []chem.Atom{
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 3},
			{Element: "N", FormalCharge: 1, Hybridization: chem.HybridSP3},
			{Element: "H", Hybridization: chem.HybridS},
			{Element: "H", Hybridization: chem.HybridS},
			{Element: "H", Hybridization: chem.HybridS},
		},
		Bonds: []chem.Bond{
			{A: 0, B: 1, Order: chem.BondSingle},
			{A: 1, B: 2, Order: chem.BondSingle},
			{A: 1, B: 3, Order: chem.BondSingle},
			{A: 1, B: 4, Order: chem.BondSingle},
		},
	}
}

func methylAmine() *chem.Structure {
	return &chem.Structure{
		Atoms: []chem.Atom{
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 3},
			{Element: "N", Hybridization: chem.HybridSP3},
			{Element: "H", Hybridization: chem.HybridS},
			{Element: "H", Hybridization: chem.HybridS},
		},
		Bonds: []chem.Bond{
			{A: 0, B: 1, Order: chem.BondSingle},
			{A: 1, B: 2, Order: chem.BondSingle},
			{A: 1, B: 3, Order: chem.BondSingle},
		},
	}
}

func acidSite(siteID int) record.SiteAnnotation {
	return record.SiteAnnotation{
		SiteID:       siteID,
		AtomIndex:    2,
		PKa:          4.76,
		Type:         record.PKaAcidic,
		Protonated:   aceticAcid(),
		Deprotonated: acetate(),
	}
}

func acidRecord(sourceID string) *record.MoleculeRecord {
	return &record.MoleculeRecord{
		SourceID:  sourceID,
		Structure: aceticAcid(),
		Sites:     []record.SiteAnnotation{acidSite(0)},
	}
}

func amineSingle(sourceID string, inputIndex int) *record.SingleSiteRecord {
	rec := &record.MoleculeRecord{SourceID: sourceID, Structure: methylAmmonium()}
	return &record.SingleSiteRecord{
		SourceID:     sourceID,
		CanonicalKey: rec.CanonicalKey(),
		InputIndex:   inputIndex,
		Site: record.SiteAnnotation{
			SiteID:       0,
			AtomIndex:    1,
			PKa:          10.6,
			Type:         record.PKaBasic,
			Protonated:   methylAmmonium(),
			Deprotonated: methylAmine(),
		},
	}
}

// sliceSource replays a fixed record slice.
type sliceSource struct {
	records []*record.MoleculeRecord
	pos     int
}

func (s *sliceSource) Next(ctx context.Context) (*record.MoleculeRecord, error) {
	if s.pos >= len(s.records) {
		return nil, nil
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Close() error { return nil }

// setExclusion is an in-memory exclusion source.
type setExclusion map[string]bool

func (e setExclusion) Contains(ctx context.Context, key string) (bool, error) {
	return e[key], nil
}
