package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	original := "line1\nline2\nline3\n"
	staged := &Diff{SessionID: "s", Content: "line1\nline2 changed\nline3\nadded\n"}

	patch, err := Unified([]byte(original), staged, "notes.txt", 3)
	require.NoError(t, err)
	assert.Contains(t, patch, "--- a/notes.txt")
	assert.Contains(t, patch, "+++ b/notes.txt")
	assert.Contains(t, patch, "+line2 changed")

	stats, err := Stats(patch)
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Hunks: 1, Insertions: 2, Deletions: 1}, stats)
}

func TestUnified_NoChange(t *testing.T) {
	patch, err := Unified([]byte("same\n"), &Diff{Content: "same\n"}, "a.txt", 0)
	assert.NoError(t, err)
	assert.Empty(t, patch)

	stats, err := Stats(patch)
	assert.NoError(t, err)
	assert.Equal(t, DiffStats{}, stats)

	patch, err = Unified(nil, nil, "", 0)
	assert.NoError(t, err)
	assert.Empty(t, patch)
}
