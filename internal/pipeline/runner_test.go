package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

func ethoxide() *chem.Structure {
	return &chem.Structure{
		Atoms: []chem.Atom{
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 3},
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 2},
			{Element: "O", FormalCharge: -1, Hybridization: chem.HybridSP3},
		},
		Bonds: []chem.Bond{
			{A: 0, B: 1, Order: chem.BondSingle},
			{A: 1, B: 2, Order: chem.BondSingle},
		},
	}
}

func ethanolProt() *chem.Structure {
	s := ethoxide()
	s.Atoms[2].FormalCharge = 0
	s.Atoms[2].ImplicitH = 1
	return s
}

func ethanolRecord(sourceID string) *record.MoleculeRecord {
	return &record.MoleculeRecord{
		SourceID:  sourceID,
		Structure: ethanolProt(),
		Sites: []record.SiteAnnotation{{
			SiteID:       0,
			AtomIndex:    2,
			PKa:          15.9,
			Type:         record.PKaAcidic,
			Protonated:   ethanolProt(),
			Deprotonated: ethoxide(),
		}},
	}
}

func amineRecord(sourceID string) *record.MoleculeRecord {
	return &record.MoleculeRecord{
		SourceID:  sourceID,
		Structure: methylAmmonium(),
		Sites: []record.SiteAnnotation{{
			SiteID:       0,
			AtomIndex:    1,
			PKa:          10.6,
			Type:         record.PKaBasic,
			Protonated:   methylAmmonium(),
			Deprotonated: methylAmine(),
		}},
	}
}

func mixedRecords() []*record.MoleculeRecord {
	broken := acidRecord("mol-5")
	broken.Sites[0].Deprotonated = nil

	alien := acidRecord("mol-6")
	alien.Structure.Atoms[0].Element = "Xe"
	alien.Sites[0].Protonated.Atoms[0].Element = "Xe"
	alien.Sites[0].Deprotonated.Atoms[0].Element = "Xe"

	return []*record.MoleculeRecord{
		acidRecord("mol-1"),
		amineRecord("mol-2"),
		acidRecord("mol-3"), // duplicate structure of mol-1
		ethanolRecord("mol-4"),
		broken,
		alien,
	}
}

func newTestRunner(t *testing.T, exclusion record.ExclusionSource, store *memStore) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerConfig{
		DatasetName:       "test",
		VocabularyVersion: "v1",
		Workers:           4,
	}, exclusion, store, nil, nil, nil)
	require.NoError(t, err)
	return r
}

func TestRunEndToEnd(t *testing.T) {
	excluded := setExclusion{ethanolRecord("x").CanonicalKey(): true}
	store := newMemStore()
	r := newTestRunner(t, excluded, store)

	d, report, err := r.Run(context.Background(), "run-1", &sliceSource{records: mixedRecords()})
	require.NoError(t, err)

	assert.Equal(t, 6, report.RecordsRead)
	assert.Equal(t, 6, report.SitesSeen)
	assert.Equal(t, 2, report.Samples)
	assert.Equal(t, 1, report.Deduplicated)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 1, report.SkippedSites)
	assert.Equal(t, 1, report.EncodingErrors)
	assert.Equal(t, 0, report.CorrespondenceErrors)
	assert.Equal(t, report.SitesSeen, report.Samples+report.Rejected())
	assert.Equal(t, 3, report.UniqueStructures)

	require.Len(t, d.Samples, 2)
	assert.Equal(t, "mol-1", d.Samples[0].SourceID)
	assert.Equal(t, "mol-2", d.Samples[1].SourceID)
	assert.NoError(t, d.Validate())

	exists, _ := store.Exists(context.Background(), "test")
	assert.True(t, exists)
}

func TestRunOrderIsDeterministic(t *testing.T) {
	for trial := 0; trial < 5; trial++ {
		r := newTestRunner(t, nil, newMemStore())
		d, _, err := r.Run(context.Background(), "run-1", &sliceSource{records: mixedRecords()[:4]})
		require.NoError(t, err)
		var sources []string
		for _, s := range d.Samples {
			sources = append(sources, s.SourceID)
		}
		assert.Equal(t, []string{"mol-1", "mol-2", "mol-4"}, sources)
	}
}

func TestRunBalancesMultiSiteRecordRejection(t *testing.T) {
	headless := &record.MoleculeRecord{
		SourceID: "mol-7",
		Sites:    []record.SiteAnnotation{acidSite(0), acidSite(1)},
	}
	records := []*record.MoleculeRecord{acidRecord("mol-1"), headless}

	r := newTestRunner(t, nil, newMemStore())
	_, report, err := r.Run(context.Background(), "run-1", &sliceSource{records: records})
	require.NoError(t, err)

	assert.Equal(t, 3, report.SitesSeen)
	assert.Equal(t, 1, report.Samples)
	assert.Equal(t, 2, report.SkippedSites)
	assert.Equal(t, report.SitesSeen, report.Samples+report.Rejected())
}

func TestRunCancelledContext(t *testing.T) {
	r := newTestRunner(t, nil, newMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Run(ctx, "run-1", &sliceSource{records: mixedRecords()})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunAborted, errors.GetCode(err))
}

func TestRunExclusionFailureAborts(t *testing.T) {
	r := newTestRunner(t, failingExclusion{}, newMemStore())
	_, _, err := r.Run(context.Background(), "run-1", &sliceSource{records: mixedRecords()[:1]})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExclusionUnavailable, errors.GetCode(err))
}
