package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/chartwise/internal/parse"
)

// pngDataURL prefixes every chart image embedded in a card.
const pngDataURL = "data:image/png;base64,"

// MarkupIssue is a defect found in composed dashboard markup.
type MarkupIssue struct {
	Check       string // "card-count", "placeholder"
	Description string
}

// CheckMarkup performs a post-composition scan of dashboard markup: it must
// embed exactly cards chart images and contain no {placeholder} token.
func CheckMarkup(markup string, cards int) []MarkupIssue {
	var issues []MarkupIssue

	if n := strings.Count(markup, pngDataURL); n != cards {
		issues = append(issues, MarkupIssue{
			Check:       "card-count",
			Description: fmt.Sprintf("markup embeds %d chart images, expected %d", n, cards),
		})
	}

	left := parse.Placeholders(markup)
	names := make([]string, 0, len(left))
	for name := range left {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		issues = append(issues, MarkupIssue{
			Check:       "placeholder",
			Description: fmt.Sprintf("unreplaced placeholder {%s} (x%d)", name, left[name]),
		})
	}
	return issues
}
