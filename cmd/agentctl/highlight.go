package main

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

var fencedBlock = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")

// highlightCodeBlocks runs chroma over every fenced code block in text,
// rendering to an ANSI-colored terminal string, and leaves everything else
// untouched. Unrecognized or empty language tags fall back to plain text
// highlighting rather than failing the whole render.
func highlightCodeBlocks(text string) string {
	return fencedBlock.ReplaceAllStringFunc(text, func(block string) string {
		m := fencedBlock.FindStringSubmatch(block)
		lang, code := m[1], m[2]
		if lang == "" {
			lang = "plaintext"
		}
		var out strings.Builder
		if err := quick.Highlight(&out, code, lang, "terminal16m", "monokai"); err != nil {
			return block
		}
		return "```" + lang + "\n" + out.String() + "```"
	})
}
