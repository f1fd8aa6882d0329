package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
)

// Runner executes one external tool. Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ToolError is a failed poppler or tesseract invocation.
type ToolError struct {
	Tool   string
	Stderr string // last lines only
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	// tesseract can leave children holding the pipes after a kill
	cmd.WaitDelay = 2 * time.Second
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// run invokes tool through the runner, times it, and turns failures into a ToolError.
func (e *Extractor) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	start := time.Now()
	out, errb, err := e.runner.Run(ctx, tool, args...)
	elapsed := time.Since(start)

	name := filepath.Base(tool)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.OCRToolSeconds.WithLabelValues(name, outcome).Observe(elapsed.Seconds())

	if err != nil {
		te := &ToolError{Tool: name, Stderr: stderrTail(errb, maxStderrLines), Err: err}
		e.logger.Warn("ocr tool failed", "tool", name, "duration_ms", elapsed.Milliseconds(), "error", te)
		return nil, te
	}
	e.logger.Debug("ocr tool finished", "tool", name, "duration_ms", elapsed.Milliseconds(), "stdout_bytes", len(out))
	return out, nil
}

const maxStderrLines = 3

// stderrTail keeps the last n non-blank lines, joined with "; ".
func stderrTail(b []byte, n int) string {
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
