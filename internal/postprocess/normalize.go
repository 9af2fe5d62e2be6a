package postprocess

import (
	"regexp"
	"strings"
)

var (
	displayMath = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	bracketMath = regexp.MustCompile(`(?s)\[([^\[\]]+?)\]`)
	inlineMath  = strings.NewReplacer(`\(`, "$", `\)`, "$")
)

// Normalize rewrites LaTeX delimiters into the dollar forms the chat shells
// render: \[ x \] and [ x ] become $$ x $$, \( and \) become $.
// Brackets nested inside brackets are resolved from the inside out.
// Normalize is idempotent.
func Normalize(raw string) string {
	out := displayMath.ReplaceAllStringFunc(raw, toDisplay(displayMath))
	for {
		next := bracketMath.ReplaceAllStringFunc(out, toDisplay(bracketMath))
		if next == out {
			break
		}
		out = next
	}
	return inlineMath.Replace(out)
}

func toDisplay(re *regexp.Regexp) func(string) string {
	return func(match string) string {
		inner := re.FindStringSubmatch(match)[1]
		return "$$" + inner + "$$"
	}
}
