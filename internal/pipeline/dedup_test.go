package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/record"
)

func singleFor(sourceID string, index int) *record.SingleSiteRecord {
	rec := acidRecord(sourceID)
	sp := NewSplitter(0, nil)
	singles, _ := sp.Split(rec, index)
	return singles[0]
}

func TestAdmitFirstOccurrence(t *testing.T) {
	d := NewDeduplicator(nil, nil)
	v, err := d.Admit(context.Background(), singleFor("mol-1", 0))
	require.NoError(t, err)
	assert.Equal(t, Admitted, v)
	assert.Equal(t, 1, d.UniqueStructures())
}

func TestAdmitDropsCrossRecordDuplicate(t *testing.T) {
	d := NewDeduplicator(nil, nil)
	ctx := context.Background()

	v, err := d.Admit(ctx, singleFor("mol-1", 0))
	require.NoError(t, err)
	require.Equal(t, Admitted, v)

	v, err = d.Admit(ctx, singleFor("mol-2", 1))
	require.NoError(t, err)
	assert.Equal(t, Duplicated, v)
	assert.Equal(t, 1, d.UniqueStructures())
}

func TestAdmitKeepsSiblingSitesOfOneRecord(t *testing.T) {
	d := NewDeduplicator(nil, nil)
	ctx := context.Background()

	first := singleFor("mol-1", 0)
	v, err := d.Admit(ctx, first)
	require.NoError(t, err)
	require.Equal(t, Admitted, v)

	sibling := singleFor("mol-1", 0)
	sibling.Site.SiteID = 1
	v, err = d.Admit(ctx, sibling)
	require.NoError(t, err)
	assert.Equal(t, Admitted, v)
}

func TestAdmitExcludesBenchmarkStructures(t *testing.T) {
	s := singleFor("mol-1", 0)
	d := NewDeduplicator(setExclusion{s.CanonicalKey: true}, nil)

	v, err := d.Admit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, Excluded, v)
	assert.Equal(t, 0, d.UniqueStructures())
}

type failingExclusion struct{}

func (failingExclusion) Contains(ctx context.Context, key string) (bool, error) {
	return false, assert.AnError
}

func TestAdmitPropagatesExclusionFailure(t *testing.T) {
	d := NewDeduplicator(failingExclusion{}, nil)
	_, err := d.Admit(context.Background(), singleFor("mol-1", 0))
	assert.Error(t, err)
}
