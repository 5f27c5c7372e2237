package visual

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KevinDz11/nopro/internal/extract"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec and logs each invocation
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		logger.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Renderer produces the image a detector sees: page 1 of a PDF rendered
// through pdftoppm, or the image document itself.
type Renderer struct {
	runner   Runner
	pdftoppm string
	dpi      int
}

// NewRenderer creates a renderer; runner nil means ExecRunner
func NewRenderer(runner Runner, pdftoppm string, dpi int) *Renderer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Renderer{runner: runner, pdftoppm: pdftoppm, dpi: dpi}
}

// Render returns the first page of doc as an image
func (r *Renderer) Render(ctx context.Context, doc *extract.Document) (Image, error) {
	if extract.IsImage(doc) {
		return NewImage(doc.Name, doc.Data), nil
	}
	if !extract.IsPDF(doc) {
		return Image{}, fmt.Errorf("cannot render %s: not a pdf or image", doc.Name)
	}

	tmpDir, err := os.MkdirTemp("", "nopro-render-*")
	if err != nil {
		return Image{}, err
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return Image{}, fmt.Errorf("write pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l 1 -singlefile <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.pdftoppm,
		"-r", strconv.Itoa(r.dpi), "-png", "-f", "1", "-l", "1", "-singlefile", in, prefix)
	if err != nil {
		return Image{}, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return Image{}, fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	return NewImage(strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))+".png", data), nil
}
