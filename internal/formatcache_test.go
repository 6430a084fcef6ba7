package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCacheCheckAndMark(t *testing.T) {
	fc := NewFormatCache()

	wasPresent := fc.CheckAndMark(7)
	require.False(t, wasPresent)

	wasPresent = fc.CheckAndMark(7)
	require.True(t, wasPresent)
}

func TestClassifyPreambleNoDocumentMarker(t *testing.T) {
	fc := NewFormatCache()
	status, _, has := fc.ClassifyPreamble(`\documentclass{article}`)
	require.Equal(t, HMRNone, status)
	require.False(t, has)
}

func TestClassifyPreambleFirstSeenIsMiss(t *testing.T) {
	fc := NewFormatCache()
	content := "\\documentclass{article}\n\\begin{document}\nhello\n\\end{document}"

	status, hash, has := fc.ClassifyPreamble(content)
	require.Equal(t, HMRMiss, status)
	require.True(t, has)
	require.NotZero(t, hash)
}

func TestClassifyPreambleSecondSeenIsHit(t *testing.T) {
	fc := NewFormatCache()
	content := "\\documentclass{article}\n\\begin{document}\nhello\n\\end{document}"

	_, _, _ = fc.ClassifyPreamble(content)
	status, _, has := fc.ClassifyPreamble(content)
	require.Equal(t, HMRHit, status)
	require.True(t, has)
}

func TestClassifyPreambleDifferentBodySamePreambleIsHit(t *testing.T) {
	fc := NewFormatCache()
	preamble := "\\documentclass{article}\n\\usepackage{amsmath}\n"

	_, _, _ = fc.ClassifyPreamble(preamble + "\\begin{document}\nfirst\n\\end{document}")
	status, _, _ := fc.ClassifyPreamble(preamble + "\\begin{document}\nsecond, totally different body\n\\end{document}")
	require.Equal(t, HMRHit, status)
}
