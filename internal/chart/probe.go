package chart

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ProbeResult describes the rendering environment.
type ProbeResult struct {
	Python     string
	Version    string
	Matplotlib string
}

const probeScript = "import sys, matplotlib; print(sys.version.split()[0], matplotlib.__version__)"

// Probe checks that python can import matplotlib under the same isolated
// flags Render uses.
func Probe(ctx context.Context, python string) (*ProbeResult, error) {
	if python == "" {
		python = "python3"
	}
	path, err := exec.LookPath(python)
	if err != nil {
		return nil, fmt.Errorf("chart: interpreter %q not found: %w", python, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(probeCtx, path, "-I", "-c", probeScript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if diag := lastLine(stderr.String()); diag != "" {
			return nil, fmt.Errorf("chart: probe %s: %s", python, diag)
		}
		return nil, fmt.Errorf("chart: probe %s: %w", python, err)
	}

	fields := strings.Fields(stdout.String())
	if len(fields) != 2 {
		return nil, fmt.Errorf("chart: probe %s: unexpected output %q", python, stdout.String())
	}
	return &ProbeResult{Python: path, Version: fields[0], Matplotlib: fields[1]}, nil
}
