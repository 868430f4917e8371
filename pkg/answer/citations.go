package answer

import (
	"regexp"
	"strings"
)

var (
	reBoldToken  = regexp.MustCompile(`\*\*\s*\[\[([^][]+)\]\]\s*\*\*`)
	reToken      = regexp.MustCompile(`\[\[([^][]+)\]\]`)
	reTokenSep   = regexp.MustCompile(`\]\][\t ]+\[\[`)
	reMultiSpace = regexp.MustCompile(`[\t ]{2,}`)
)

// normalizeCitations repairs the citation tokens models tend to mangle:
// bold-wrapped tokens lose the emphasis and single-bracket references
// to a known chunk id are upgraded to the double-bracket form.
func normalizeCitations(s string, valid map[string]bool) string {
	s = reBoldToken.ReplaceAllString(s, "[[$1]]")
	s = upgradeSingleBrackets(s, valid)
	s = reTokenSep.ReplaceAllString(s, "]] [[")
	return s
}

// upgradeSingleBrackets rewrites [id] to [[id]] for known chunk ids,
// leaving double-bracket tokens, markdown links and nested brackets
// untouched.
func upgradeSingleBrackets(s string, valid map[string]bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '[' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '[' {
			// already a citation token, copy it whole
			end := strings.Index(s[i:], "]]")
			if end == -1 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : i+end+2])
			i += end + 2
			continue
		}
		j := i + 1
		for j < len(s) && s[j] != ']' && s[j] != '[' {
			j++
		}
		if j >= len(s) || s[j] == '[' {
			b.WriteByte(s[i])
			i++
			continue
		}
		// markdown link [text](url) stays a link
		isLink := j+1 < len(s) && s[j+1] == '('
		inner := strings.TrimSpace(s[i+1 : j])
		if !isLink && valid[inner] {
			b.WriteString("[[")
			b.WriteString(inner)
			b.WriteString("]]")
		} else {
			b.WriteString(s[i : j+1])
		}
		i = j + 1
	}
	return b.String()
}

// extractCitations pulls the ordered list of distinct cited chunk ids
// out of the answer text and drops citation tokens that do not refer to
// a chunk present in the prompt context.
func extractCitations(s string, valid map[string]bool) (string, []string) {
	var cited []string
	seen := map[string]bool{}

	out := reToken.ReplaceAllStringFunc(s, func(m string) string {
		id := strings.TrimSpace(m[2 : len(m)-2])
		if !valid[id] {
			return ""
		}
		if !seen[id] {
			seen[id] = true
			cited = append(cited, id)
		}
		return "[[" + id + "]]"
	})

	out = reMultiSpace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out), cited
}
