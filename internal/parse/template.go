package parse

import (
	"regexp"
	"sort"
	"strings"
)

// placeholderRe matches {identifier} tokens. CSS blocks such as
// ".card{margin:0}" do not match because of the punctuation inside.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the placeholder names in text with their counts.
func Placeholders(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		counts[m[1]]++
	}
	return counts
}

// Template validates that text contains each required placeholder exactly
// once and no other placeholder.
func Template(name, text string, required ...string) error {
	counts := Placeholders(text)
	for _, r := range required {
		switch counts[r] {
		case 1:
		case 0:
			return syntaxErr("template", -1, "%s template is missing {%s}", name, r)
		default:
			return syntaxErr("template", -1, "%s template repeats {%s} %d times", name, r, counts[r])
		}
	}

	want := make(map[string]bool, len(required))
	for _, r := range required {
		want[r] = true
	}
	var extra []string
	for p := range counts {
		if !want[p] {
			extra = append(extra, "{"+p+"}")
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return syntaxErr("template", -1, "%s template has unexpected placeholders %s", name, strings.Join(extra, ", "))
	}
	return nil
}

// Fill substitutes {name} tokens with values in a single pass. Substituted
// text is never rescanned, so values containing placeholder-like tokens are
// inserted verbatim.
func Fill(text string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(values))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
