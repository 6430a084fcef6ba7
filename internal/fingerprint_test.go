package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeFingerprintDeterministic(t *testing.T) {
	files := []FileEntry{{Path: "main.tex", Content: "\\documentclass{article}"}}
	require.Equal(t, ComputeFingerprint(files), ComputeFingerprint(files))
}

func TestComputeFingerprintIgnoresFilenames(t *testing.T) {
	a := []FileEntry{{Path: "main.tex", Content: "hello"}}
	b := []FileEntry{{Path: "renamed.tex", Content: "hello"}}
	require.Equal(t, ComputeFingerprint(a), ComputeFingerprint(b))
}

func TestComputeFingerprintOrderSensitive(t *testing.T) {
	a := []FileEntry{{Content: "one"}, {Content: "two"}}
	b := []FileEntry{{Content: "two"}, {Content: "one"}}
	require.NotEqual(t, ComputeFingerprint(a), ComputeFingerprint(b))
}

func TestComputeFingerprintContentChangeChangesHash(t *testing.T) {
	a := []FileEntry{{Content: "hello"}}
	b := []FileEntry{{Content: "hello!"}}
	require.NotEqual(t, ComputeFingerprint(a), ComputeFingerprint(b))
}

func TestExtractPreambleFound(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\nbody\n\\end{document}"
	preamble, found := ExtractPreamble(source)
	require.True(t, found)
	require.Equal(t, "\\documentclass{article}\n", preamble)
}

func TestExtractPreambleNotFound(t *testing.T) {
	_, found := ExtractPreamble("\\documentclass{article}")
	require.False(t, found)
}

func TestComputePreambleHashDeterministic(t *testing.T) {
	require.Equal(t, ComputePreambleHash("abc"), ComputePreambleHash("abc"))
	require.NotEqual(t, ComputePreambleHash("abc"), ComputePreambleHash("abd"))
}
