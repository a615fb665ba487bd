// Package filesystem loads documents from a file or directory tree and
// watches it for changes. Registered normalisers extract text from the
// formats they handle; other accepted files are read as UTF-8 text.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.DocumentSource = (*Loader)(nil)

// DefaultExtensions are the file types read when neither extensions nor
// normalisers are configured.
var DefaultExtensions = []string{".txt", ".md"}

// Loader reads documents under a root path. A directory root yields one
// document per matching file with source ID "{sourceID}/{relative path}";
// a file root yields a single document with source ID sourceID.
type Loader struct {
	sourceID    string
	root        string
	extensions  map[string]bool
	normalisers map[string]driven.Normaliser

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtensions replaces the accepted file extensions. Matching ignores
// case and a missing leading dot.
func WithExtensions(exts ...string) Option {
	return func(l *Loader) {
		if len(exts) == 0 {
			return
		}
		l.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			l.extensions[e] = true
		}
	}
}

// WithNormalisers registers format extractors by extension. When two
// claim the same extension the later one wins.
func WithNormalisers(ns ...driven.Normaliser) Option {
	return func(l *Loader) {
		if l.normalisers == nil {
			l.normalisers = make(map[string]driven.Normaliser)
		}
		for _, n := range ns {
			for _, ext := range n.Extensions() {
				l.normalisers[strings.ToLower(ext)] = n
			}
		}
	}
}

// New creates a loader for root. Without WithExtensions the loader accepts
// the extensions of its normalisers, or DefaultExtensions if it has none.
func New(sourceID, root string, opts ...Option) *Loader {
	l := &Loader{
		sourceID: sourceID,
		root:     filepath.Clean(root),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.extensions == nil {
		exts := DefaultExtensions
		if len(l.normalisers) > 0 {
			exts = make([]string, 0, len(l.normalisers))
			for ext := range l.normalisers {
				exts = append(exts, ext)
			}
		}
		WithExtensions(exts...)(l)
	}
	return l
}

// SourceID returns the prefix of every emitted source ID.
func (l *Loader) SourceID() string {
	return l.sourceID
}

// Validate checks the root exists and is readable.
func (l *Loader) Validate(_ context.Context) error {
	info, err := os.Stat(l.root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: path %s does not exist", domain.ErrInvalidInput, l.root)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if info.IsDir() {
		f, err := os.Open(l.root)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return f.Close()
	}
	return nil
}

// Walk emits every matching document. Hidden files and directories are
// skipped, as are files their normaliser rejects and unhandled files that
// are not valid UTF-8.
func (l *Loader) Walk(ctx context.Context) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := l.Validate(ctx); err != nil {
			errs <- err
			return
		}

		err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != l.root && isHidden(l.rel(path)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if path != l.root && !l.accepts(path) {
				return nil
			}

			doc, ok, err := l.read(ctx, path)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- fmt.Errorf("walk %s: %w", l.root, err)
		}
	}()

	return docs, errs
}

// Watch emits changes until ctx is done. New subdirectories are watched as
// they appear.
func (l *Loader) Watch(ctx context.Context) (<-chan domain.DocumentChange, error) {
	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if l.isFileRoot() {
		err = watcher.Add(filepath.Dir(l.root))
	} else {
		err = l.addTree(watcher, l.root)
	}
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", l.root, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	changes := make(chan domain.DocumentChange)
	go func() {
		defer close(changes)
		defer l.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && !l.isFileRoot() {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(l.rel(event.Name)) {
						if err := l.addTree(watcher, event.Name); err != nil {
							logger.Warn("Watch %s: %v", event.Name, err)
						}
					}
				}

				change, ok := l.handleEvent(ctx, event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watch %s: %v", l.root, err)
			}
		}
	}()

	return changes, nil
}

// Close stops any active watch.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

// handleEvent maps a filesystem event to a document change. Directories,
// hidden paths, unmatched extensions and chmod events yield nothing.
func (l *Loader) handleEvent(ctx context.Context, event fsnotify.Event) (domain.DocumentChange, bool) {
	id, ok := l.documentID(event.Name)
	if !ok {
		return domain.DocumentChange{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return domain.DocumentChange{
			Type:     domain.ChangeDeleted,
			Document: domain.Document{SourceID: id, Path: event.Name, Filename: filepath.Base(event.Name)},
		}, true

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return domain.DocumentChange{}, false
		}
		doc, ok, err := l.read(ctx, event.Name)
		if err != nil {
			logger.Warn("Watch %s: %v", event.Name, err)
			return domain.DocumentChange{}, false
		}
		if !ok {
			return domain.DocumentChange{}, false
		}

		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return domain.DocumentChange{Type: changeType, Document: doc}, true
	}

	return domain.DocumentChange{}, false
}

// documentID maps a path under the root to its source ID. Paths outside
// the root, hidden paths and unmatched extensions have none.
func (l *Loader) documentID(path string) (string, bool) {
	path = filepath.Clean(path)
	if l.isFileRoot() {
		return l.sourceID, path == l.root
	}

	rel := l.rel(path)
	if rel == "." || strings.HasPrefix(rel, "..") || isHidden(rel) || !l.accepts(path) {
		return "", false
	}
	return l.sourceID + "/" + filepath.ToSlash(rel), true
}

// read loads the document at path. ok is false when the file should be
// skipped.
func (l *Loader) read(ctx context.Context, path string) (domain.Document, bool, error) {
	id, ok := l.documentID(path)
	if !ok {
		return domain.Document{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	content := string(data)
	if n, ok := l.normalisers[strings.ToLower(filepath.Ext(path))]; ok {
		content, err = n.Normalise(ctx, data)
		if errors.Is(err, domain.ErrInvalidInput) {
			logger.Debug("Skipping %s: %v", path, err)
			return domain.Document{}, false, nil
		}
		if err != nil {
			return domain.Document{}, false, fmt.Errorf("%s %s: %w", n.Name(), path, err)
		}
	} else if !utf8.Valid(data) {
		logger.Debug("Skipping %s: not UTF-8 text", path)
		return domain.Document{}, false, nil
	}

	return domain.Document{
		SourceID: id,
		Path:     path,
		Filename: filepath.Base(path),
		Content:  content,
	}, true, nil
}

func (l *Loader) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != l.root && isHidden(l.rel(path)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (l *Loader) accepts(path string) bool {
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

func (l *Loader) isFileRoot() bool {
	info, err := os.Stat(l.root)
	if err != nil {
		// A removed file root is still a file root.
		return filepath.Ext(l.root) != ""
	}
	return !info.IsDir()
}

func (l *Loader) rel(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
