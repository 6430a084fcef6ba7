package internal

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	directDiagnosticRe = regexp.MustCompile(`^\[Error\] ([^:]+):(\d+): (.+)$`)
	fallbackLeadRe     = regexp.MustCompile(`^(!|error:)`)
	lineContextRe      = regexp.MustCompile(`^l\.(\d+)(.*)$`)
	sourceFileRe       = regexp.MustCompile(`\(([^()]+\.(?:tex|sty|cls))`)
	haltedRe           = regexp.MustCompile(`halted on potentially-recoverable error`)
)

// ParseLog converts engine log text into structured Diagnostic records,
// per spec.md §4.7. Applies two recognition strategies per line, the
// direct pattern first and a fallback multi-line scan second. Grounded
// on the teacher's regex-driven external-tool-output parsers
// (internal/lint.go's parseChktexOutput, internal/wordcount.go's
// parseTexcountOutput) — same shape of "run external tool, regex the
// line-oriented output into a typed slice," generalized to the engine's
// own log format.
func ParseLog(logs string) []Diagnostic {
	lines := strings.Split(logs, "\n")
	var diags []Diagnostic

	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")

		if haltedRe.MatchString(trimmed) {
			continue
		}

		if m := directDiagnosticRe.FindStringSubmatch(trimmed); m != nil {
			lineNum, _ := strconv.Atoi(m[2])
			diags = append(diags, Diagnostic{
				File:    m[1],
				Line:    &lineNum,
				Message: m[3],
			})
			continue
		}

		if fallbackLeadRe.MatchString(trimmed) {
			diags = append(diags, parseFallback(lines, i, trimmed))
		}
	}

	return diags
}

func parseFallback(lines []string, leadIdx int, leadLine string) Diagnostic {
	message := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(leadLine, "!"), "error:"))

	diag := Diagnostic{
		File:    "unknown",
		Message: message,
	}

	end := leadIdx + 11 // up to 10 lines of forward context past the lead line
	if end > len(lines) {
		end = len(lines)
	}
	for i := leadIdx + 1; i < end; i++ {
		if m := lineContextRe.FindStringSubmatch(lines[i]); m != nil {
			lineNum, _ := strconv.Atoi(m[1])
			diag.Line = &lineNum
			diag.Context = strings.TrimSpace(m[2])
			break
		}
	}

	for i := leadIdx - 1; i >= 0; i-- {
		if m := sourceFileRe.FindStringSubmatch(lines[i]); m != nil {
			diag.File = strings.TrimPrefix(m[1], "./")
			break
		}
	}

	return diag
}
