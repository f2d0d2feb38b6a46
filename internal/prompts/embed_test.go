package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_AllPrompts(t *testing.T) {
	for _, name := range []string{Query, Chart, Caption, Summary, KPI, Ideas, Templates} {
		assert.NotEmpty(t, Get(name), name)
	}
}

func TestGet_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { Get("nope") })
}

func TestRender(t *testing.T) {
	text := Render(KPI, map[string]string{"count": "4"})
	assert.Contains(t, text, "the 4 most relevant KPIs")
	assert.NotContains(t, text, "{count}")

	assert.Equal(t, Get(Templates), Render(Templates, nil))
}
