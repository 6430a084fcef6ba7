package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// protectedCommands is the ~130-entry list of well-known TeX/LaTeX
// primitives the Self-Healer never patches, because an "undefined"
// report against one of these is a symptom of a deeper problem, not a
// missing user macro. Ported unchanged in content from
// original_source/src/healer.rs's PROTECTED_COMMANDS — spec.md §4.6
// calls this list "part of the spec surface" and requires it be shipped
// as data.
var protectedCommands = map[string]struct{}{
	"begin": {}, "end": {}, "documentclass": {}, "usepackage": {}, "input": {}, "include": {},
	"newcommand": {}, "renewcommand": {}, "providecommand": {}, "def": {}, "let": {},
	"section": {}, "subsection": {}, "subsubsection": {}, "paragraph": {}, "chapter": {},
	"textbf": {}, "textit": {}, "emph": {}, "underline": {}, "texttt": {}, "textrm": {}, "textsf": {},
	"item": {}, "label": {}, "ref": {}, "cite": {}, "bibliography": {}, "bibliographystyle": {},
	"caption": {}, "title": {}, "author": {}, "date": {}, "maketitle": {},
	"hspace": {}, "vspace": {}, "hfill": {}, "vfill": {}, "newline": {}, "linebreak": {}, "pagebreak": {},
	"footnote": {}, "marginpar": {}, "centering": {}, "raggedleft": {}, "raggedright": {},
	"frac": {}, "sqrt": {}, "sum": {}, "prod": {}, "int": {}, "lim": {}, "sin": {}, "cos": {}, "tan": {}, "log": {}, "exp": {},
	"alpha": {}, "beta": {}, "gamma": {}, "delta": {}, "epsilon": {}, "theta": {}, "lambda": {}, "mu": {}, "pi": {}, "sigma": {}, "omega": {},
	"left": {}, "right": {}, "big": {}, "Big": {}, "bigg": {}, "Bigg": {},
	"text": {}, "mathrm": {}, "mathbf": {}, "mathit": {}, "mathsf": {}, "mathtt": {}, "mathcal": {}, "mathbb": {},
	"quad": {}, "qquad": {}, "ldots": {}, "cdots": {}, "dots": {}, "infty": {}, "partial": {}, "nabla": {},
	"over": {}, "atop": {}, "choose": {}, "brace": {}, "brack": {},
	"if": {}, "else": {}, "fi": {}, "ifx": {}, "ifnum": {}, "ifdim": {}, "ifcase": {}, "or": {},
	"relax": {}, "expandafter": {}, "noexpand": {}, "csname": {}, "endcsname": {},
	"the": {}, "number": {}, "romannumeral": {}, "string": {}, "meaning": {},
	"par": {}, "indent": {}, "noindent": {}, "smallskip": {}, "medskip": {}, "bigskip": {},
	"tiny": {}, "scriptsize": {}, "footnotesize": {}, "small": {}, "normalsize": {}, "large": {}, "Large": {}, "LARGE": {}, "huge": {}, "Huge": {},
}

var (
	undefinedControlSeqRe = regexp.MustCompile(`\[Error\] [^:]+:(\d+): Undefined control sequence`)
	commandTokenRe        = regexp.MustCompile(`\\([A-Za-z@]+)`)
)

// AttemptHeal applies the three conservative, additive patch rules of
// spec.md §4.6, in order, returning the healed source and true if at
// least one patch applied. Ported in idiom (not text) from
// original_source/src/healer.rs's SelfHealer::attempt_heal.
func AttemptHeal(source, logs string) (healed string, applied bool) {
	healed = source

	if healMissingEnd(&healed, logs) {
		applied = true
	}
	if healUndefinedCommand(&healed, source, logs) {
		applied = true
	}
	if healRunawayArgument(&healed, logs) {
		applied = true
	}

	if !applied {
		return "", false
	}
	return healed, true
}

// healMissingEnd implements FIX 1: append \end{document} when the source
// has a \begin{document} but no terminator. Gates on the source marker
// only, not on the logs carrying an emergency-stop message — this
// follows original_source/src/healer.rs's SelfHealer, which applies the
// same patch unconditionally whenever the marker is missing.
func healMissingEnd(healed *string, logs string) bool {
	if strings.Contains(*healed, docBeginMarker) && !strings.Contains(*healed, `\end{document}`) {
		*healed += "\n\\end{document}\n"
		return true
	}
	return false
}

// healUndefinedCommand implements FIX 2: inspect the source line named by
// the log's "Undefined control sequence" report, extract every command
// token, and stub every one that isn't in protectedCommands.
func healUndefinedCommand(healed *string, original, logs string) bool {
	match := undefinedControlSeqRe.FindStringSubmatch(logs)
	if match == nil {
		return false
	}

	lineNum, err := strconv.Atoi(match[1])
	if err != nil || lineNum < 1 {
		return false
	}

	lines := strings.Split(original, "\n")
	if lineNum > len(lines) {
		return false
	}
	lineStr := lines[lineNum-1]

	var stubs strings.Builder
	seen := make(map[string]bool)
	for _, m := range commandTokenRe.FindAllStringSubmatch(lineStr, -1) {
		cmd := m[1]
		if _, protected := protectedCommands[cmd]; protected {
			continue
		}
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		fmt.Fprintf(&stubs, "\n\\providecommand{\\%s}[1][]{[?%s]}", cmd, cmd)
	}

	if stubs.Len() == 0 {
		return false
	}

	if idx := strings.Index(*healed, docBeginMarker); idx >= 0 {
		*healed = (*healed)[:idx] + stubs.String() + (*healed)[idx:]
	} else if idx := strings.Index(*healed, "\n"); idx >= 0 {
		*healed = (*healed)[:idx+1] + stubs.String() + (*healed)[idx+1:]
	} else {
		*healed = stubs.String() + *healed
	}

	return true
}

// healRunawayArgument implements FIX 3: append a closing brace before
// \end{document} (or at the end) when the logs show a runaway argument
// or EOF-while-scanning error. This heuristic can over-close; spec.md
// §9 leaves that risk unguarded deliberately.
func healRunawayArgument(healed *string, logs string) bool {
	if !strings.Contains(logs, "Runaway argument") && !strings.Contains(logs, "File ended while scanning") {
		return false
	}

	if idx := strings.LastIndex(*healed, `\end{document}`); idx >= 0 {
		*healed = (*healed)[:idx] + "\n}\n" + (*healed)[idx:]
	} else {
		*healed += "\n}\n"
	}
	return true
}
