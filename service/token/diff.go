package token

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
)

// DiffStats summarises a unified diff for review surfaces.
type DiffStats struct {
	Hunks      int `json:"hunks"`
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
}

// Unified renders the staged diff content against the original file body
// as a GNU unified diff. Identical bodies produce an empty string.
func Unified(original []byte, diff *Diff, name string, contextLines int) (string, error) {
	if diff == nil {
		return "", nil
	}
	if contextLines <= 0 {
		contextLines = 3
	}
	if name == "" {
		name = "file"
	}
	if string(original) == diff.Content {
		return "", nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(diff.Content),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  contextLines,
	}
	patch, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diff generation: %w", err)
	}
	return patch, nil
}

// Stats parses a single-file unified diff and counts its hunks and lines.
func Stats(patch string) (DiffStats, error) {
	if patch == "" {
		return DiffStats{}, nil
	}
	fd, err := sgdiff.ParseFileDiff([]byte(patch))
	if err != nil {
		return DiffStats{}, fmt.Errorf("parse diff: %w", err)
	}
	stats := DiffStats{Hunks: len(fd.Hunks)}
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				stats.Insertions++
			case strings.HasPrefix(line, "-"):
				stats.Deletions++
			}
		}
	}
	return stats, nil
}
