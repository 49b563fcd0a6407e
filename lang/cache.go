package lang

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
)

// cacheEntry is a compiled unit, compiled at most once.
type cacheEntry struct {
	once     sync.Once
	done     atomic.Bool
	mu       sync.Mutex
	unit     *Unit
	err      error
	compiled time.Time
	hash     uint64
}

func (c *cacheEntry) time() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.compiled
}

func (c *cacheEntry) touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.compiled = t
}

// unitCache holds compiled units keyed by loader cache key and sub-index.
type unitCache struct {
	entries sync.Map // string -> *cacheEntry
}

func cacheKey(key string, index int) string {
	return key + ":" + strconv.Itoa(index)
}

// LoadTemplate returns the named template, compiling it on first use. With
// auto reload, a cached unit whose source the loader reports as changed is
// recompiled unless the source content is unchanged.
func (e *Environment) LoadTemplate(
	ctx context.Context,
	name string,
	index int,
) (*Template, error) {
	e.init()

	key, err := e.loader.CacheKey(name)
	if err != nil {
		return nil, err
	}

	key = cacheKey(key, index)
	logger := e.logger.Component("cache")

	value, hit := e.cache.entries.LoadOrStore(key, new(cacheEntry))
	ent := value.(*cacheEntry)

	if hit && e.autoReload && ent.done.Load() && !e.loader.IsFresh(name, ent.time()) {
		if ent, err = e.reload(ctx, key, name, ent); err != nil {
			return nil, err
		}
	}

	logger.TraceContext(ctx, "cache lookup",
		slog.String("name", name),
		slog.String("key", key),
		slog.Bool("cache_hit", hit))

	ent.once.Do(func() {
		defer ent.done.Store(true)
		defer func() {
			if r := recover(); r != nil {
				ent.unit = nil
				ent.err = ErrLogic.Errorf("compiling %q: %v", name, r)
			}
		}()

		source, err := e.loader.Source(name)
		if err != nil {
			ent.err = err

			return
		}

		ent.hash = xxh3.HashString(source)
		ent.unit, ent.err = e.compileSource(ctx, source, name, index)
		ent.compiled = time.Now()
	})

	unit, err := ent.unit, ent.err
	if err == nil && unit == nil {
		err = ErrLogic.Errorf("template %q has no compiled unit", name)
	}

	if err != nil {
		e.cache.entries.CompareAndDelete(key, ent)

		return nil, err
	}

	return &Template{env: e, unit: unit}, nil
}

// reload replaces a stale entry unless its source hash is unchanged.
func (e *Environment) reload(
	ctx context.Context,
	key, name string,
	ent *cacheEntry,
) (*cacheEntry, error) {
	source, err := e.loader.Source(name)
	if err != nil {
		return nil, err
	}

	changed := xxh3.HashString(source) != ent.hash

	e.logger.Component("cache").DebugContext(ctx, "stale template",
		slog.String("name", name),
		slog.Bool("changed", changed))

	if !changed {
		ent.touch(time.Now())

		return ent, nil
	}

	e.cache.entries.CompareAndSwap(key, ent, new(cacheEntry))

	value, _ := e.cache.entries.LoadOrStore(key, new(cacheEntry))

	return value.(*cacheEntry), nil
}

// ClearCache drops every compiled unit.
func (e *Environment) ClearCache() {
	e.cache.entries.Clear()
}

// IsTemplateFresh reports whether the cached unit of the named template is
// at least as new as its source. Templates not in the cache are not fresh.
func (e *Environment) IsTemplateFresh(name string, t time.Time) bool {
	e.init()

	key, err := e.loader.CacheKey(name)
	if err != nil {
		return false
	}

	if _, ok := e.cache.entries.Load(cacheKey(key, 0)); !ok {
		return false
	}

	return e.loader.IsFresh(name, t)
}

// ResolveTemplate returns the first loadable template among names. Each
// name may be a template name or a *Template. With a single candidate its
// error is returned as is.
func (e *Environment) ResolveTemplate(ctx context.Context, names ...any) (*Template, error) {
	var tried []string

	for _, n := range names {
		if t, ok := n.(*Template); ok {
			return t, nil
		}

		name := toString(n)

		t, err := e.LoadTemplate(ctx, name, 0)
		if err == nil {
			return t, nil
		}

		if len(names) == 1 || !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}

		tried = append(tried, name)
	}

	return nil, ErrTemplateNotFound.Errorf(
		"Unable to find one of the following templates: %s", quoteJoin(tried))
}
