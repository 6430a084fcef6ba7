package internal

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// docBeginMarker is the literal 16-character marker that ends a preamble.
const docBeginMarker = `\begin{document}`

// ComputeFingerprint hashes the concatenation of every submitted file's
// bytes, in received order, with no filenames mixed in — the single rule
// that makes the multipart and streaming ingest paths produce identical
// fingerprints for identical content (spec.md §9, resolved open question).
func ComputeFingerprint(files []FileEntry) InputFingerprint {
	h := xxhash.New()
	for _, f := range files {
		_, _ = h.WriteString(f.Content)
	}
	return InputFingerprint(h.Sum64())
}

// ExtractPreamble returns the text preceding the first \begin{document}
// marker and whether the marker was found at all.
func ExtractPreamble(mainContent string) (preamble string, found bool) {
	idx := strings.Index(mainContent, docBeginMarker)
	if idx < 0 {
		return "", false
	}
	return mainContent[:idx], true
}

// ComputePreambleHash hashes a preamble string.
func ComputePreambleHash(preamble string) PreambleHash {
	return PreambleHash(xxhash.Sum64String(preamble))
}
