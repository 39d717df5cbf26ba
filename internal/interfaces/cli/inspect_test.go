package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

func inspectableDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Name:              "probe",
		VocabularyVersion: "v1",
		CreatedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Samples: []*dataset.ReactionSample{
			{
				Protonated: &dataset.AttributedGraph{
					NodeFeatures: [][]float32{{1, 0}, {0, 1}},
				},
				Deprotonated: &dataset.AttributedGraph{
					NodeFeatures: [][]float32{{1, 0}},
				},
				PKa:            4.76,
				PKaType:        "acidic",
				SourceID:       "mol-1",
				SiteID:         0,
				CanonicalKey:   "key-1",
				Correspondence: []int{0, -1},
			},
		},
	}
}

func writeDatasetFile(t *testing.T, d *dataset.Dataset) string {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ds.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestInspectSummarizesDataset(t *testing.T) {
	path := writeDatasetFile(t, inspectableDataset())

	cmd := newTestCommand(t)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"inspect", path})
	require.NoError(t, cmd.Execute())

	out := stdout.String()
	assert.Contains(t, out, "dataset probe (vocabulary v1)")
	assert.Contains(t, out, "samples:           1")
	assert.Contains(t, out, "unique structures: 1")
	assert.Contains(t, out, "acidic sites:      1")
	assert.Contains(t, out, "pKa range:         4.76 to 4.76")
	assert.Contains(t, out, "integrity:         ok")
}

func TestInspectRejectsCorruptDataset(t *testing.T) {
	d := inspectableDataset()
	d.VocabularyVersion = ""
	path := writeDatasetFile(t, d)

	cmd := newTestCommand(t)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"inspect", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIntegrity, errors.GetCode(err))
}

func TestInspectUnreadableFile(t *testing.T) {
	cmd := newTestCommand(t)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"inspect", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, cmd.Execute())
}
