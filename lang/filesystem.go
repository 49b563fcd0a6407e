package lang

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/readahead"
)

// maxSuggestionFiles bounds the files scanned for not-found suggestions.
const maxSuggestionFiles = 1000

// FilesystemLoader loads templates from files under a list of search paths.
// Absolute names are loaded directly.
type FilesystemLoader struct {
	mu    sync.RWMutex
	paths []string
	found map[string]string
}

// NewFilesystemLoader returns a loader searching paths in order.
func NewFilesystemLoader(paths ...string) *FilesystemLoader {
	l := &FilesystemLoader{}
	l.SetPaths(paths...)

	return l
}

// Paths returns the search paths.
func (l *FilesystemLoader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.paths...)
}

// SetPaths replaces the search paths.
func (l *FilesystemLoader) SetPaths(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.paths = nil
	l.found = make(map[string]string)

	for _, p := range paths {
		if p != "" {
			l.paths = append(l.paths, filepath.Clean(p))
		}
	}
}

// AddPath appends a search path.
func (l *FilesystemLoader) AddPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.paths = append(l.paths, filepath.Clean(path))
	l.found = make(map[string]string)
}

// PrependPath inserts a search path before the others.
func (l *FilesystemLoader) PrependPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.paths = append([]string{filepath.Clean(path)}, l.paths...)
	l.found = make(map[string]string)
}

func (l *FilesystemLoader) Source(name string) (string, error) {
	path, err := l.find(name)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", ErrLoader.Wrap(err).With(slog.String("path", path))
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return "", ErrLoader.Wrap(err).With(slog.String("path", path))
	}

	return string(data), nil
}

func (l *FilesystemLoader) CacheKey(name string) (string, error) {
	return l.find(name)
}

func (l *FilesystemLoader) IsFresh(name string, t time.Time) bool {
	path, err := l.find(name)
	if err != nil {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.ModTime().After(t)
}

func normalizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	for strings.Contains(name, "//") {
		name = strings.ReplaceAll(name, "//", "/")
	}

	return name
}

// validateName rejects names that leave the search paths.
func validateName(name string) error {
	if strings.ContainsRune(name, 0) {
		return ErrLoader.Errorf("A template name cannot contain NUL bytes")
	}

	level := 0

	for part := range strings.SplitSeq(strings.TrimLeft(name, "/"), "/") {
		switch part {
		case "..":
			level--
		case ".", "":
		default:
			level++
		}

		if level < 0 {
			return ErrLoader.Errorf(
				"Looks like you try to load a template outside configured directories (%s)",
				name)
		}
	}

	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func (l *FilesystemLoader) find(name string) (string, error) {
	name = normalizeName(name)

	l.mu.RLock()
	path, ok := l.found[name]
	paths := l.paths
	l.mu.RUnlock()

	if ok {
		return path, nil
	}

	if filepath.IsAbs(name) {
		if isFile(name) {
			return name, nil
		}

		return "", notDefined(name)
	}

	if err := validateName(name); err != nil {
		return "", err
	}

	if len(paths) == 0 {
		return "", ErrTemplateNotFound.Errorf(
			`Unable to find template "%s" (there are no registered paths)`, name)
	}

	for _, dir := range paths {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if !isFile(p) {
			continue
		}

		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}

		l.mu.Lock()
		l.found[name] = p
		l.mu.Unlock()

		return p, nil
	}

	return "", ErrTemplateNotFound.Errorf("%s", didYouMean(
		`Unable to find template "`+name+`" (looked into: `+strings.Join(paths, ", ")+`)`,
		firstN(alternatives(name, templateFiles(paths)), 3),
	)).With(slog.String("template", name))
}

// templateFiles lists the files under paths by slash-separated relative
// name.
func templateFiles(paths []string) []string {
	var names []string

	for _, dir := range paths {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if len(names) >= maxSuggestionFiles {
				return filepath.SkipAll
			}

			if err != nil {
				return filepath.SkipDir
			}

			if d.Type().IsRegular() {
				if rel, err := filepath.Rel(dir, p); err == nil {
					names = append(names, filepath.ToSlash(rel))
				}
			}

			return nil
		})
	}

	return names
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}

	return s
}
