// Package agent holds the generation agents of the pipeline. Each agent owns
// one system prompt, sends its stage's inputs to an llm.Generator and parses
// the response with the strict grammars of package parse.
package agent

// Agent is implemented by every generation agent.
type Agent interface {
	// Card describes the agent.
	Card() Card
}

// Role identifies a generation agent.
type Role string

const (
	RoleQuery     Role = "query"
	RoleChart     Role = "chart"
	RoleCaption   Role = "caption"
	RoleSummary   Role = "summary"
	RoleKPI       Role = "kpi"
	RoleIdeas     Role = "ideas"
	RoleTemplates Role = "templates"
)

// Roles lists every role in pipeline order.
var Roles = []Role{RoleQuery, RoleChart, RoleCaption, RoleSummary, RoleKPI, RoleIdeas, RoleTemplates}

// Card describes an agent: what it produces and which model serves it.
type Card struct {
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
	Multimodal  bool   `json:"multimodal,omitempty"`
}
