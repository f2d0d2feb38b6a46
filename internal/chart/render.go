package chart

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Renderer = (*PythonRenderer)(nil)

//go:embed harness.py
var harness []byte

const (
	exitBinding = 3

	// maxStderr bounds how much interpreter diagnostics are kept.
	maxStderr = 64 << 10
)

// PythonRenderer renders chart programs with a matplotlib interpreter. Each
// Render call starts a fresh process in its own temporary directory.
type PythonRenderer struct {
	Python    string        // interpreter path; "python3" when empty
	Timeout   time.Duration // per-render deadline; none when zero
	Inspector *Inspector    // static checks; NewInspector() when nil
	Logger    *slog.Logger
}

// NewPythonRenderer returns a renderer using the given interpreter.
func NewPythonRenderer(python string, timeout time.Duration) *PythonRenderer {
	return &PythonRenderer{Python: python, Timeout: timeout, Inspector: NewInspector()}
}

// Render inspects and executes program, returning the PNG bytes of fig.
func (r *PythonRenderer) Render(ctx context.Context, program string) ([]byte, error) {
	inspector := r.Inspector
	if inspector == nil {
		inspector = NewInspector()
	}
	report, err := inspector.Inspect(program)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "chartwise-render-")
	if err != nil {
		return nil, fmt.Errorf("chart: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	harnessPath := filepath.Join(dir, "harness.py")
	programPath := filepath.Join(dir, "program.py")
	if err := os.WriteFile(harnessPath, harness, 0o600); err != nil {
		return nil, fmt.Errorf("chart: write harness: %w", err)
	}
	if err := os.WriteFile(programPath, []byte(program), 0o600); err != nil {
		return nil, fmt.Errorf("chart: write program: %w", err)
	}
	mplDir := filepath.Join(dir, "mpl")
	if err := os.Mkdir(mplDir, 0o700); err != nil {
		return nil, fmt.Errorf("chart: config dir: %w", err)
	}

	var stdout bytes.Buffer
	stderr := &capped{limit: maxStderr}
	cmd := exec.CommandContext(ctx, r.python(), "-I", harnessPath, programPath, dir)
	cmd.Dir = dir
	cmd.Env = []string{
		"MPLBACKEND=Agg",
		"HOME=" + dir,
		"MPLCONFIGDIR=" + mplDir,
		"TMPDIR=" + dir,
		"PATH=" + os.Getenv("PATH"),
		"LANG=C.UTF-8",
	}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	r.logger().Debug("chart render finished",
		"imports", report.Imports,
		"lines", report.Lines,
		"elapsed", time.Since(start),
		"bytes", stdout.Len(),
	)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("chart: render: %w", ctx.Err())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("chart: start %s: %w", r.python(), runErr)
		}
		diag := lastLine(stderr.String())
		if exitErr.ExitCode() == exitBinding {
			return nil, bindingErr("%s", strings.TrimPrefix(diag, "BindingError: "))
		}
		if diag == "" {
			diag = fmt.Sprintf("interpreter exited with status %d", exitErr.ExitCode())
		}
		return nil, executionErr(0, "%s", diag)
	}

	png := stdout.Bytes()
	if !IsPNG(png) {
		return nil, executionErr(0, "renderer produced %d bytes that are not a PNG image", len(png))
	}
	return png, nil
}

func (r *PythonRenderer) python() string {
	if r.Python == "" {
		return "python3"
	}
	return r.Python
}

func (r *PythonRenderer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// lastLine returns the last non-blank line of s, which for a Python
// traceback is the exception summary.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// capped is a writer that keeps only the last limit bytes written.
type capped struct {
	buf   []byte
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	if over := len(c.buf) - c.limit; over > 0 {
		c.buf = c.buf[over:]
	}
	return len(p), nil
}

func (c *capped) String() string { return string(c.buf) }
