package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/KevinDz11/nopro/internal/worker"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	subs []worker.Submission
}

func (r *recordingSubmitter) Submit(ctx context.Context, sub worker.Submission) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return sub.DocumentID, nil
}

func (r *recordingSubmitter) submissions() []worker.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]worker.Submission(nil), r.subs...)
}

func TestClassify(t *testing.T) {
	root := filepath.FromSlash("/inbox")
	tests := []struct {
		path    string
		wantCat string
		wantDoc string
		wantOK  bool
	}{
		{"/inbox/Laptop/ficha/a.pdf", "Laptop", "ficha", true},
		{"/inbox/smart tv/etiqueta/lote 3/b.png", "smart tv", "etiqueta", true},
		{"/inbox/Laptop/a.pdf", "", "", false},
		{"/elsewhere/Laptop/ficha/a.pdf", "", "", false},
	}
	for _, tt := range tests {
		cat, doc, ok := Classify(root, filepath.FromSlash(tt.path))
		if cat != tt.wantCat || doc != tt.wantDoc || ok != tt.wantOK {
			t.Errorf("Classify(%q) = %q, %q, %v; want %q, %q, %v", tt.path, cat, doc, ok, tt.wantCat, tt.wantDoc, tt.wantOK)
		}
	}
}

func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("/inbox", "/inbox/Laptop/ficha/a.pdf")
	b := DocumentID("/inbox", "/inbox/Laptop/ficha/a.pdf")
	c := DocumentID("/inbox", "/inbox/Laptop/ficha/b.pdf")
	if a != b {
		t.Errorf("same path produced %s and %s", a, b)
	}
	if a == c {
		t.Error("different paths produced the same id")
	}
}

func TestWatcher_InitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "Laptop", "ficha", "a.pdf")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	// ignored: wrong extension and outside the layout
	_ = os.WriteFile(filepath.Join(root, "Laptop", "ficha", "notes.docx"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "stray.pdf"), []byte("x"), 0o644)

	sub := &recordingSubmitter{}
	w := NewWatcher(Config{Root: root, InitialScan: true, Debounce: 20 * time.Millisecond}, sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return len(sub.submissions()) == 1 })

	// A new type directory with a file is picked up after the quiet period
	newDir := filepath.Join(root, "SmartTV", "etiqueta")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond) // let the watcher add the directories
	if err := os.WriteFile(filepath.Join(newDir, "b.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(sub.submissions()) == 2 })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error: %v", err)
	}

	subs := sub.submissions()
	if subs[0].Category != "Laptop" || subs[0].DocType != "ficha" || subs[0].Source != existing {
		t.Errorf("unexpected initial submission: %+v", subs[0])
	}
	if subs[1].Category != "SmartTV" || subs[1].DocType != "etiqueta" {
		t.Errorf("unexpected new submission: %+v", subs[1])
	}
}

func TestWatcher_NoRoot(t *testing.T) {
	w := NewWatcher(Config{}, &recordingSubmitter{}, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error without a root")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
