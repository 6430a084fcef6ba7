package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSourceCleanDocument(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\nhello\n\\end{document}"
	require.Empty(t, ValidateSource(source))
}

func TestValidateSourceUnbalancedBraces(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\n\\textbf{unterminated\n\\end{document}"
	issues := ValidateSource(source)
	require.NotEmpty(t, issues)
}

func TestValidateSourceMissingBeginDocument(t *testing.T) {
	source := "\\documentclass{article}\nhello\n\\end{document}"
	issues := ValidateSource(source)
	require.Contains(t, issues, `missing \begin{document}`)
}

func TestValidateSourceMissingEndDocument(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\nhello"
	issues := ValidateSource(source)
	require.Contains(t, issues, `missing \end{document}`)
}

func TestValidateSourceMismatchedEnvironment(t *testing.T) {
	source := "\\begin{document}\n\\begin{itemize}\n\\item a\n\\end{enumerate}\n\\end{document}"
	issues := ValidateSource(source)
	require.NotEmpty(t, issues)
}

func TestValidateSourceIgnoresCommentedBraces(t *testing.T) {
	source := "\\begin{document}\n% unmatched brace {\nhello\n\\end{document}"
	require.Empty(t, ValidateSource(source))
}
