package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttemptHealMissingEndDocument(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\nHello World\n"
	logs := "[Error] test.tex:3: Emergency stop"

	healed, applied := AttemptHeal(source, logs)
	require.True(t, applied)
	require.Contains(t, healed, `\end{document}`)
}

func TestAttemptHealUndefinedCommand(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\n\\mybrokencommand\n\\end{document}\n"
	logs := "[Error] test.tex:3: Undefined control sequence"

	healed, applied := AttemptHeal(source, logs)
	require.True(t, applied)
	require.Contains(t, healed, `\providecommand{\mybrokencommand}`)
}

func TestAttemptHealProtectedCommandNotPatched(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\n\\textbf{test}\n\\end{document}\n"
	logs := "[Error] test.tex:3: Undefined control sequence"

	healed, applied := AttemptHeal(source, logs)
	require.False(t, applied || containsProvidecommand(healed, "textbf"))
}

func TestAttemptHealRunawayArgument(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\n\\textbf{unterminated\n\\end{document}\n"
	logs := "Runaway argument? {unterminated \\end{document} \nFile ended while scanning use of \\textbf."

	healed, applied := AttemptHeal(source, logs)
	require.True(t, applied)
	require.Contains(t, healed, "}\n\\end{document}")
}

func TestAttemptHealNoPatchableErrorReturnsFalse(t *testing.T) {
	source := "\\documentclass{article}\n\\begin{document}\nhello\n\\end{document}\n"
	logs := "[Note] nothing wrong here"

	_, applied := AttemptHeal(source, logs)
	require.False(t, applied)
}

func containsProvidecommand(s, name string) bool {
	return strings.Contains(s, `\providecommand{\`+name+`}`)
}
