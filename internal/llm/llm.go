// Package llm defines the generation call contract used by every synthesis
// stage: role-tagged messages carrying text and inline image parts in, a
// text response plus an optional rationale out.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrUnavailable marks failures to reach the generation service.
var ErrUnavailable = errors.New("generation service unavailable")

// Role tags a message with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one piece of message content: either text or an inline image.
type Part struct {
	Text      string
	Image     []byte
	MediaType string // e.g. "image/png"; only set for image parts
}

// IsImage reports whether the part carries image bytes.
func (p Part) IsImage() bool { return len(p.Image) > 0 }

// DataURL returns the image part encoded as a data URL.
func (p Part) DataURL() string {
	mt := p.MediaType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(p.Image)
}

// Message is a role-tagged sequence of parts.
type Message struct {
	Role  Role
	Parts []Part
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if !p.IsImage() {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// System builds a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{{Text: text}}}
}

// User builds a text-only user message.
func User(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// UserImage builds a user message with a text part followed by an inline
// image part.
func UserImage(text string, image []byte, mediaType string) Message {
	return Message{Role: RoleUser, Parts: []Part{
		{Text: text},
		{Image: image, MediaType: mediaType},
	}}
}

// Request is a single generation call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
}

// Response is the result of a generation call. Rationale is the secondary
// reasoning channel when the service exposes one; empty otherwise.
type Response struct {
	Text      string
	Rationale string
}

// Generator is the generation capability.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
