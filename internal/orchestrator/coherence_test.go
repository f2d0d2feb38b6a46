package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMarkup(t *testing.T) {
	card := `<img src="data:image/png;base64,AAAA"/>`

	assert.Empty(t, CheckMarkup("<main>"+card+card+"</main>", 2))
	assert.Empty(t, CheckMarkup("<style>.card{margin:0}</style>", 0))

	issues := CheckMarkup("<main>"+card+"{caption}{data}{caption}</main>", 2)
	assert.Equal(t, []MarkupIssue{
		{Check: "card-count", Description: "markup embeds 1 chart images, expected 2"},
		{Check: "placeholder", Description: "unreplaced placeholder {caption} (x2)"},
		{Check: "placeholder", Description: "unreplaced placeholder {data} (x1)"},
	}, issues)
}
