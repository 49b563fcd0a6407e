package lang

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Loader provides template sources by name.
type Loader interface {
	// Source returns the source of the named template, or an error matching
	// ErrTemplateNotFound.
	Source(name string) (string, error)
	// CacheKey returns a key unique to the template among those the loader
	// can provide.
	CacheKey(name string) (string, error)
	// IsFresh reports whether the template has not changed since t.
	IsFresh(name string, t time.Time) bool
}

func notDefined(name string) error {
	return ErrTemplateNotFound.Errorf(`Template "%s" is not defined`, name).
		With(slog.String("template", name))
}

type mapEntry struct {
	source   string
	modified time.Time
}

// MapLoader loads templates from memory.
type MapLoader struct {
	mu        sync.RWMutex
	templates map[string]mapEntry
}

// NewMapLoader returns a MapLoader holding the given name to source pairs.
func NewMapLoader(templates map[string]string) *MapLoader {
	l := &MapLoader{templates: make(map[string]mapEntry, len(templates))}

	now := time.Now()
	for name, source := range templates {
		l.templates[name] = mapEntry{source: source, modified: now}
	}

	return l
}

// Set adds or replaces a template.
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.templates[name] = mapEntry{source: source, modified: time.Now()}
}

// Exists reports whether the loader holds the named template.
func (l *MapLoader) Exists(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.templates[name]

	return ok
}

func (l *MapLoader) Source(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.templates[name]
	if !ok {
		return "", notDefined(name)
	}

	return e.source, nil
}

func (l *MapLoader) CacheKey(name string) (string, error) {
	if !l.Exists(name) {
		return "", notDefined(name)
	}

	return name, nil
}

func (l *MapLoader) IsFresh(name string, t time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.templates[name]

	return ok && !e.modified.After(t)
}

// ChainLoader tries each of its loaders in order.
type ChainLoader []Loader

func (c ChainLoader) Source(name string) (string, error) {
	var errs []string

	for _, l := range c {
		s, err := l.Source(name)
		if err == nil {
			return s, nil
		}

		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}

		errs = append(errs, WrapError(err).Message())
	}

	return "", c.notFound(name, errs)
}

func (c ChainLoader) CacheKey(name string) (string, error) {
	var errs []string

	for _, l := range c {
		key, err := l.CacheKey(name)
		if err == nil {
			return key, nil
		}

		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}

		errs = append(errs, WrapError(err).Message())
	}

	return "", c.notFound(name, errs)
}

// IsFresh reports the freshness given by the first loader that has the
// template.
func (c ChainLoader) IsFresh(name string, t time.Time) bool {
	for _, l := range c {
		if _, err := l.CacheKey(name); err == nil {
			return l.IsFresh(name, t)
		}
	}

	return false
}

func (c ChainLoader) notFound(name string, errs []string) error {
	msg := `Template "` + name + `" is not defined`
	if len(errs) > 0 {
		msg += " (" + strings.Join(errs, ", ") + ")"
	}

	return ErrTemplateNotFound.Errorf("%s", msg).With(slog.String("template", name))
}
