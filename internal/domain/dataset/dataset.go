package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Dataset is the assembled, ordered collection of reaction samples produced
// by one pipeline run.  Sample order is deterministic: samples appear in
// input-record order, sites in annotation order within a record.
type Dataset struct {
	// Name identifies the dataset artifact (e.g. "chembl-train").
	Name string `json:"name"`

	// VocabularyVersion records which attribute vocabulary encoded the
	// graphs; mixing versions across a dataset is invalid.
	VocabularyVersion string `json:"vocabulary_version"`

	CreatedAt time.Time `json:"created_at"`

	Samples []*ReactionSample `json:"samples"`
}

// sampleKey identifies a sample by its originating record and site.
type sampleKey struct {
	source string
	site   int
}

// Validate checks the cross-sample invariants of an assembled dataset.  Any
// violation is an integrity error: the run must fail rather than persist a
// corrupt artifact.
func (d *Dataset) Validate() error {
	if d.VocabularyVersion == "" {
		return errors.Integrity("dataset has no vocabulary version")
	}
	seen := make(map[string]int, len(d.Samples))
	seenSites := make(map[sampleKey]int, len(d.Samples))
	for i, s := range d.Samples {
		if s == nil || s.Protonated == nil || s.Deprotonated == nil {
			return errors.Integrity("dataset contains an incomplete sample").
				WithDetail(fmt.Sprintf("index=%d", i))
		}
		sk := sampleKey{source: s.SourceID, site: s.SiteID}
		if prev, ok := seenSites[sk]; ok {
			return errors.Integrity("duplicate sample for one source site").
				WithDetail(fmt.Sprintf("indices=%d,%d source=%s site=%d", prev, i, s.SourceID, s.SiteID))
		}
		seenSites[sk] = i
		key := s.CanonicalKey
		if key == "" {
			return errors.Integrity("sample has no canonical key").
				WithDetail(fmt.Sprintf("index=%d source=%s", i, s.SourceID))
		}
		if prev, ok := seen[key]; ok && d.Samples[prev].SourceID != s.SourceID {
			return errors.Integrity("duplicate structure across distinct records").
				WithDetail(fmt.Sprintf("indices=%d,%d key=%s", prev, i, key))
		}
		if _, ok := seen[key]; !ok {
			seen[key] = i
		}
		if len(s.Correspondence) != s.Protonated.NumNodes() {
			return errors.Integrity("correspondence length does not match protonated graph").
				WithDetail(fmt.Sprintf("index=%d", i))
		}
	}
	return nil
}

// Split partitions the dataset into train and validation subsets at the
// molecule level: all samples of one parent structure land on the same side,
// so no structure leaks across the boundary.  ratio is the training
// fraction; seed makes the shuffle reproducible.
func (d *Dataset) Split(ratio float64, seed int64) (train, validation *Dataset, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, errors.New(errors.ErrCodeSplitInvalid,
			fmt.Sprintf("split ratio must be in (0,1), got %g", ratio))
	}
	groups, order := d.groupByKey(seed)

	cut := int(float64(len(order)) * ratio)
	train = d.subset(d.Name+"-train", groups, order[:cut])
	validation = d.subset(d.Name+"-val", groups, order[cut:])
	return train, validation, nil
}

// Folds partitions the dataset into k cross-validation folds, again grouped
// by parent structure.  Fold i's validation set is group stripe i; its
// training set is everything else.
func (d *Dataset) Folds(k int, seed int64) ([][2]*Dataset, error) {
	if k < 2 {
		return nil, errors.New(errors.ErrCodeSplitInvalid,
			fmt.Sprintf("fold count must be at least 2, got %d", k))
	}
	groups, order := d.groupByKey(seed)
	if len(order) < k {
		return nil, errors.New(errors.ErrCodeSplitInvalid,
			fmt.Sprintf("%d unique structures cannot form %d folds", len(order), k))
	}

	folds := make([][2]*Dataset, k)
	for i := 0; i < k; i++ {
		var trainKeys, valKeys []string
		for j, key := range order {
			if j%k == i {
				valKeys = append(valKeys, key)
			} else {
				trainKeys = append(trainKeys, key)
			}
		}
		folds[i] = [2]*Dataset{
			d.subset(fmt.Sprintf("%s-fold%d-train", d.Name, i), groups, trainKeys),
			d.subset(fmt.Sprintf("%s-fold%d-val", d.Name, i), groups, valKeys),
		}
	}
	return folds, nil
}

// groupByKey collects sample indices per canonical key and returns the keys
// in a seeded shuffle order.
func (d *Dataset) groupByKey(seed int64) (map[string][]int, []string) {
	groups := make(map[string][]int)
	var order []string
	for i, s := range d.Samples {
		if _, ok := groups[s.CanonicalKey]; !ok {
			order = append(order, s.CanonicalKey)
		}
		groups[s.CanonicalKey] = append(groups[s.CanonicalKey], i)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
	return groups, order
}

func (d *Dataset) subset(name string, groups map[string][]int, keys []string) *Dataset {
	out := &Dataset{
		Name:              name,
		VocabularyVersion: d.VocabularyVersion,
		CreatedAt:         d.CreatedAt,
	}
	for _, key := range keys {
		for _, idx := range groups[key] {
			out.Samples = append(out.Samples, d.Samples[idx])
		}
	}
	return out
}
