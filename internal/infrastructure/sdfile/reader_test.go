package sdfile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
)

const aceticAcidSDF = `acetic acid
  test

  4  3  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
  2  3  1  0
  2  4  2  0
M  END
> <ID>
mol-1

> <pKa>
4.76

> <site_atom>
2

> <pka_type>
acidic

$$$$
`

const methylammoniumSDF = `methylamine
  test

  2  1  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 N   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
M  END
> <pKa>
10.6

> <site_atom>
1

> <pka_type>
basic

$$$$
`

const benzoateSDF = `benzoate
  test

  9  9  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  4  0
  2  3  4  0
  3  4  4  0
  4  5  4  0
  5  6  4  0
  6  1  4  0
  1  7  1  0
  7  8  1  0
  7  9  2  0
M  CHG  1   8  -1
M  END
$$$$
`

func read(t *testing.T, sdf string) *record.MoleculeRecord {
	t.Helper()
	r := NewReader(strings.NewReader(sdf), nil)
	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestReadAcidRecord(t *testing.T) {
	rec := read(t, aceticAcidSDF)

	assert.Equal(t, "mol-1", rec.SourceID)
	assert.Equal(t, "acetic acid", rec.Name)
	require.NotNil(t, rec.Structure)
	assert.Equal(t, 4, rec.Structure.NumAtoms())
	assert.Equal(t, 3, rec.Structure.NumBonds())

	require.Len(t, rec.Sites, 1)
	site := rec.Sites[0]
	assert.Equal(t, 2, site.AtomIndex)
	assert.Equal(t, 4.76, site.PKa)
	assert.Equal(t, record.PKaAcidic, site.Type)

	// Stored form is the protonated side; the conjugate base loses one
	// hydrogen and one unit of charge at the site oxygen.
	assert.Equal(t, 1, site.Protonated.Atoms[2].ImplicitH)
	assert.Equal(t, 0, site.Protonated.Atoms[2].FormalCharge)
	assert.Equal(t, 0, site.Deprotonated.Atoms[2].ImplicitH)
	assert.Equal(t, -1, site.Deprotonated.Atoms[2].FormalCharge)
}

func TestPerceptionFillsAttributes(t *testing.T) {
	rec := read(t, aceticAcidSDF)
	atoms := rec.Structure.Atoms

	assert.Equal(t, 3, atoms[0].ImplicitH)
	assert.Equal(t, chem.HybridSP3, atoms[0].Hybridization)
	assert.Equal(t, 0, atoms[1].ImplicitH)
	assert.Equal(t, chem.HybridSP2, atoms[1].Hybridization)
	assert.Equal(t, 1, atoms[2].ImplicitH)
	assert.Equal(t, 0, atoms[3].ImplicitH)
}

func TestReadBasicSiteDerivesProtonatedForm(t *testing.T) {
	rec := read(t, methylammoniumSDF)
	require.Len(t, rec.Sites, 1)
	site := rec.Sites[0]

	// Stored form is neutral; protonation adds a hydrogen and a charge.
	assert.Equal(t, 2, site.Deprotonated.Atoms[1].ImplicitH)
	assert.Equal(t, 0, site.Deprotonated.Atoms[1].FormalCharge)
	assert.Equal(t, 3, site.Protonated.Atoms[1].ImplicitH)
	assert.Equal(t, 1, site.Protonated.Atoms[1].FormalCharge)
}

func TestReadChargeLineAndRings(t *testing.T) {
	rec := read(t, benzoateSDF)
	s := rec.Structure

	assert.Equal(t, -1, s.Atoms[7].FormalCharge)
	assert.Equal(t, -1, s.NetCharge())

	// Six ring carbons are aromatic and in a ring; the carboxylate is not.
	for i := 0; i < 6; i++ {
		assert.True(t, s.Atoms[i].InRing, "atom %d", i)
		assert.True(t, s.Atoms[i].Aromatic, "atom %d", i)
	}
	assert.False(t, s.Atoms[6].InRing)
	assert.False(t, s.Atoms[7].InRing)

	// Ring carbons carry one implicit hydrogen except the substituted one.
	assert.Equal(t, 0, s.Atoms[0].ImplicitH)
	for i := 1; i < 6; i++ {
		assert.Equal(t, 1, s.Atoms[i].ImplicitH, "atom %d", i)
	}
	// Charged oxygen has no hydrogens.
	assert.Equal(t, 0, s.Atoms[7].ImplicitH)

	assert.Empty(t, rec.Sites)
}

func TestReadMultipleRecords(t *testing.T) {
	r := NewReader(strings.NewReader(aceticAcidSDF+methylammoniumSDF), nil)
	ctx := context.Background()

	first, err := r.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "mol-1", first.SourceID)

	second, err := r.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "methylamine", second.SourceID)

	third, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestReadTruncatedRecord(t *testing.T) {
	truncated := strings.Join(strings.Split(aceticAcidSDF, "\n")[:6], "\n")
	r := NewReader(strings.NewReader(truncated), nil)
	_, err := r.Next(context.Background())
	assert.Error(t, err)
}

func TestReaderFeedsPipelineNormalizer(t *testing.T) {
	rec := read(t, aceticAcidSDF)
	require.Len(t, rec.Sites, 1)
	assert.NoError(t, rec.Sites[0].Valid())
}
