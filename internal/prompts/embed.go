// Package prompts embeds the system prompts of the synthesis stages. Each
// stage has one Markdown file under text/, named after the stage.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

// FS contains the embedded prompt files.
//
//go:embed text/*.md
var FS embed.FS

// Prompt names.
const (
	Query     = "query"
	Chart     = "chart"
	Caption   = "caption"
	Summary   = "summary"
	KPI       = "kpi"
	Ideas     = "ideas"
	Templates = "templates"
)

// Get returns the named system prompt. Unknown names panic: prompt names are
// compile-time constants.
func Get(name string) string {
	data, err := FS.ReadFile("text/" + name + ".md")
	if err != nil {
		panic(fmt.Sprintf("prompts: %s: %v", name, err))
	}
	return strings.TrimSpace(string(data))
}

// Render returns the named prompt with {key} tokens replaced by vars.
func Render(name string, vars map[string]string) string {
	text := Get(name)
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
