package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogDirectPattern(t *testing.T) {
	logs := "[Note] starting\n[Error] chapter1.tex:42: Undefined control sequence\n[Note] done"

	diags := ParseLog(logs)
	require.Len(t, diags, 1)
	require.Equal(t, "chapter1.tex", diags[0].File)
	require.NotNil(t, diags[0].Line)
	require.Equal(t, 42, *diags[0].Line)
	require.Equal(t, "Undefined control sequence", diags[0].Message)
}

func TestParseLogFallbackPattern(t *testing.T) {
	logs := "(./main.tex\n! Undefined control sequence.\nl.12 \\foo\n           \nquestionable input"

	diags := ParseLog(logs)
	require.Len(t, diags, 1)
	require.Equal(t, "main.tex", diags[0].File)
	require.NotNil(t, diags[0].Line)
	require.Equal(t, 12, *diags[0].Line)
	require.Equal(t, "Undefined control sequence.", diags[0].Message)
}

func TestParseLogFallbackUnknownFileWhenNoSourceContext(t *testing.T) {
	logs := "! Something broke.\nl.5 oops"

	diags := ParseLog(logs)
	require.Len(t, diags, 1)
	require.Equal(t, "unknown", diags[0].File)
}

func TestParseLogIgnoresHaltedRecoverableLine(t *testing.T) {
	logs := "! LaTeX Error: halted on potentially-recoverable error as per your -interaction setting."

	diags := ParseLog(logs)
	require.Empty(t, diags)
}

func TestParseLogNoDiagnosticsOnCleanLog(t *testing.T) {
	logs := "[Note] This is pdfTeX\n[Note] Output written on main.pdf"
	require.Empty(t, ParseLog(logs))
}
