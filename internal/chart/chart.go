// Package chart renders generated chart programs to PNG images. Programs are
// inspected statically with tree-sitter before they are executed in a fresh
// interpreter process per render.
package chart

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBinding marks programs that do not bind a figure to fig.
	ErrBinding = errors.New("chart binding")
	// ErrExecution marks programs that failed policy checks or raised.
	ErrExecution = errors.New("chart execution")
)

// FigureName is the variable a chart program must bind its figure to.
const FigureName = "fig"

// ProgramError describes why a chart program could not be rendered.
type ProgramError struct {
	Binding bool // true for binding failures, false for execution failures
	Line    int  // 1-based source line, 0 when unknown
	Msg     string
}

func (e *ProgramError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Is matches ErrBinding or ErrExecution depending on the failure kind.
func (e *ProgramError) Is(target error) bool {
	if e.Binding {
		return target == ErrBinding
	}
	return target == ErrExecution
}

func bindingErr(format string, args ...any) error {
	return &ProgramError{Binding: true, Msg: fmt.Sprintf(format, args...)}
}

func executionErr(line int, format string, args ...any) error {
	return &ProgramError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Renderer executes a chart program and returns the PNG bytes of the figure
// it binds.
type Renderer interface {
	Render(ctx context.Context, program string) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, program string) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, program string) ([]byte, error) {
	return f(ctx, program)
}

// pngMagic is the PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IsPNG reports whether b starts with the PNG signature.
func IsPNG(b []byte) bool {
	if len(b) < len(pngMagic) {
		return false
	}
	for i, c := range pngMagic {
		if b[i] != c {
			return false
		}
	}
	return true
}
