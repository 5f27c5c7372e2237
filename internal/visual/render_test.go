package visual

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/KevinDz11/nopro/internal/extract"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeRunner writes a PNG where pdftoppm would
type fakeRunner struct {
	name string
	args []string
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	if f.err != nil {
		return nil, []byte("Syntax Error: broken xref"), f.err
	}
	prefix := args[len(args)-1]
	if err := os.WriteFile(prefix+".png", pngHeader, 0o600); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func TestRenderer_PDF(t *testing.T) {
	runner := &fakeRunner{}
	r := NewRenderer(runner, "/usr/bin/pdftoppm", 150)

	img, err := r.Render(context.Background(), &extract.Document{Name: "label.pdf", Data: []byte("%PDF-1.7 ...")})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if runner.name != "/usr/bin/pdftoppm" {
		t.Errorf("runner called %q", runner.name)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.HasPrefix(joined, "-r 150 -png -f 1 -l 1 -singlefile ") {
		t.Errorf("args = %q", joined)
	}
	if img.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", img.MIME)
	}
	if string(img.Data) != string(pngHeader) {
		t.Error("image bytes do not match rendered file")
	}
}

func TestRenderer_ImagePassThrough(t *testing.T) {
	runner := &fakeRunner{}
	r := NewRenderer(runner, "", 0)

	img, err := r.Render(context.Background(), &extract.Document{Name: "etiqueta.png", Data: pngHeader})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if runner.name != "" {
		t.Error("images must not be rendered")
	}
	if img.Name != "etiqueta.png" || img.MIME != "image/png" {
		t.Errorf("unexpected image: %s %s", img.Name, img.MIME)
	}
}

func TestRenderer_Errors(t *testing.T) {
	r := NewRenderer(&fakeRunner{err: errors.New("exit status 1")}, "", 0)
	_, err := r.Render(context.Background(), &extract.Document{Name: "label.pdf", Data: []byte("%PDF-1.4")})
	if err == nil || !strings.Contains(err.Error(), "broken xref") {
		t.Errorf("expected pdftoppm error with stderr, got %v", err)
	}

	_, err = r.Render(context.Background(), &extract.Document{Name: "notes.txt", Data: []byte("hola")})
	if err == nil {
		t.Error("expected error for a text document")
	}
}
