// Package ingest watches an inbox directory and submits dropped documents
// for analysis. Files are laid out as <root>/<category>/<doc type>/<file>.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/KevinDz11/nopro/internal/worker"
)

// Allowed extensions for discovery (lowercase, without '.')
var defaultExts = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"txt":  {},
	"html": {},
	"htm":  {},
}

// Submitter accepts documents for analysis
type Submitter interface {
	Submit(ctx context.Context, sub worker.Submission) (string, error)
}

// Config configures the inbox watcher
type Config struct {
	Root        string
	AllowedExts map[string]struct{}
	InitialScan bool          // submit files already present at start
	Debounce    time.Duration // quiet period before a file is submitted
}

// Watcher submits inbox files once they stop changing
type Watcher struct {
	cfg       Config
	submitter Submitter
	logger    *slog.Logger
}

// NewWatcher creates a watcher
func NewWatcher(cfg Config, sub Submitter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultExts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{cfg: cfg, submitter: sub, logger: logger}
}

// Run watches the inbox until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Root == "" {
		return errors.New("no inbox root provided")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	var initial []string
	err = filepath.WalkDir(w.cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.cfg.InitialScan && w.allowed(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Root, err)
	}
	w.logger.Info("watching inbox", "root", w.cfg.Root, "debounce", w.cfg.Debounce)

	for _, p := range initial {
		w.submit(ctx, p)
	}

	// last event time per path; a path is submitted after a quiet period
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Op&fsnotify.Create == fsnotify.Create {
				w.watchNewDir(fw, e.Name)
			}
			if w.allowed(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending[e.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for p, last := range pending {
				if now.Sub(last) >= w.cfg.Debounce {
					delete(pending, p)
					w.submit(ctx, p)
				}
			}
		}
	}
}

// watchNewDir adds directories created after start, including their files
func (w *Watcher) watchNewDir(fw *fsnotify.Watcher, path string) {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fw.Add(p); err != nil {
			w.logger.Warn("failed to watch new directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) submit(ctx context.Context, path string) {
	category, docType, ok := Classify(w.cfg.Root, path)
	if !ok {
		w.logger.Warn("ignoring file outside <category>/<type>/ layout", "path", path)
		return
	}

	id, err := w.submitter.Submit(ctx, worker.Submission{
		DocumentID: DocumentID(w.cfg.Root, path),
		Source:     path,
		Category:   category,
		DocType:    docType,
	})
	if err != nil {
		w.logger.Error("failed to submit inbox document", "path", path, "error", err)
		return
	}
	w.logger.Info("inbox document submitted", "path", path, "document", id, "category", category, "doc_type", docType)
}

func (w *Watcher) allowed(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := w.cfg.AllowedExts[ext]
	return ok
}

// Classify reads category and document type from the directory layout.
// The raw names are normalised later by the pipeline.
func Classify(root, path string) (category, docType string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 || parts[0] == ".." {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// DocumentID derives a stable id from the file's place in the inbox, so a
// replaced file re-runs under the same document
func DocumentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("nopro-inbox:"+filepath.ToSlash(rel))).String()
}
