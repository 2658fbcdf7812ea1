package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterFixture() Dataset {
	ds := Dataset{Headers: []string{"Student", "Email"}}
	ds.AddRow("alice", "alice@example.edu")
	ds.AddRow("bob")
	return ds
}

func TestDatasetAddRowFollowsHeaders(t *testing.T) {
	ds := rosterFixture()
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "alice@example.edu", ds.Rows[0]["Email"])
	assert.Equal(t, "", ds.Rows[1]["Email"])
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterFixture())
	require.NoError(t, err)
	assert.Equal(t, "Student,Email\nalice,alice@example.edu\nbob,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterFixture(), "CPSC 449 roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
