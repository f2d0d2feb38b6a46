package agent

import (
	"fmt"
	"sync"

	"github.com/dusk-indust/chartwise/internal/llm"
)

// Options configures the agents built by a Registry.
type Options struct {
	TextModel   string
	VisionModel string
	Temperature *float64
	TableRows   int // rows of a result table sent to the chart writer
	KPICount    int
}

// AgentFactory is a constructor that creates an Agent.
type AgentFactory func() Agent

// Registry maps agent roles to their factory constructors. Every agent it
// builds shares one generator.
type Registry struct {
	mu        sync.Mutex
	factories map[Role]AgentFactory
}

// NewRegistry creates a Registry pre-registered with all agents.
func NewRegistry(gen llm.Generator, opts Options) *Registry {
	r := &Registry{
		factories: make(map[Role]AgentFactory),
	}
	text, vision, temp := opts.TextModel, opts.VisionModel, opts.Temperature
	r.factories[RoleQuery] = func() Agent { return NewQueryWriter(gen, text, temp) }
	r.factories[RoleChart] = func() Agent { return NewChartWriter(gen, text, temp, opts.TableRows) }
	r.factories[RoleCaption] = func() Agent { return NewCaptioner(gen, vision, temp) }
	r.factories[RoleSummary] = func() Agent { return NewSummarizer(gen, text, temp) }
	r.factories[RoleKPI] = func() Agent { return NewKPISuggester(gen, text, temp, opts.KPICount) }
	r.factories[RoleIdeas] = func() Agent { return NewIdeaWriter(gen, text, temp) }
	r.factories[RoleTemplates] = func() Agent { return NewTemplateWriter(gen, text, temp) }
	return r
}

// Register replaces the factory for role.
func (r *Registry) Register(role Role, factory AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[role] = factory
}

// Spawn creates a single agent by role using the registered factory.
func (r *Registry) Spawn(role Role) (Agent, error) {
	r.mu.Lock()
	factory, ok := r.factories[role]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("agent: no factory registered for role %q", role)
	}
	return factory(), nil
}

// Cards returns the card of every registered agent in pipeline order.
func (r *Registry) Cards() []Card {
	var cards []Card
	for _, role := range Roles {
		if ag, err := r.Spawn(role); err == nil {
			cards = append(cards, ag.Card())
		}
	}
	return cards
}

// Set holds one agent per role, typed for direct use by the orchestrator.
type Set struct {
	Query     *QueryWriter
	Chart     *ChartWriter
	Caption   *Captioner
	Summary   *Summarizer
	KPI       *KPISuggester
	Ideas     *IdeaWriter
	Templates *TemplateWriter
}

// Set spawns every role. A factory that returns the wrong type for its role
// is an error.
func (r *Registry) Set() (*Set, error) {
	var s Set
	for _, role := range Roles {
		ag, err := r.Spawn(role)
		if err != nil {
			return nil, err
		}
		var ok bool
		switch role {
		case RoleQuery:
			s.Query, ok = ag.(*QueryWriter)
		case RoleChart:
			s.Chart, ok = ag.(*ChartWriter)
		case RoleCaption:
			s.Caption, ok = ag.(*Captioner)
		case RoleSummary:
			s.Summary, ok = ag.(*Summarizer)
		case RoleKPI:
			s.KPI, ok = ag.(*KPISuggester)
		case RoleIdeas:
			s.Ideas, ok = ag.(*IdeaWriter)
		case RoleTemplates:
			s.Templates, ok = ag.(*TemplateWriter)
		}
		if !ok {
			return nil, fmt.Errorf("agent: factory for role %q returned %T", role, ag)
		}
	}
	return &s, nil
}
