package cmd

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/razr/lang"
	"github.com/ardnew/razr/log"
)

// fileKey uniquely identifies a file by its device and inode numbers.
type fileKey struct {
	dev uint64
	ino uint64
}

// dataSource is an opened context data file.
type dataSource struct {
	io.Reader

	name string
}

// openDataFiles opens the given context data files in order, skipping files
// already opened through another path. All occurrences of "-" are replaced
// with a single stdin reader placed last.
func openDataFiles(paths []string) (sources []dataSource, closeAll func(), err error) {
	var files []*os.File

	closeAll = func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	seen := make(map[fileKey]struct{})
	hasStdin := false

	for _, path := range paths {
		if path == stdinSource {
			hasStdin = true

			continue
		}

		file, ok, err := openUniqueFile(path, seen)
		if err != nil {
			closeAll()

			return nil, func() {}, ErrReadData.Wrap(err).With(slog.String("file", path))
		}

		if !ok {
			continue
		}

		files = append(files, file)
		sources = append(sources, dataSource{Reader: file, name: path})
	}

	if hasStdin {
		sources = append(sources, dataSource{Reader: stdin, name: stdinSource})
	}

	return sources, closeAll, nil
}

// openUniqueFile opens the file at path unless a file with the same device
// and inode was seen before.
func openUniqueFile(path string, seen map[fileKey]struct{}) (*os.File, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, false, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, false, err
	}

	if key, ok := makeFileKey(info); ok {
		if _, exists := seen[key]; exists {
			return nil, false, nil
		}

		seen[key] = struct{}{}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, false, err
	}

	return file, true, nil
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}

// decodeData decodes a YAML or JSON mapping. Nested mappings keep their key
// order as [lang.Hash] values.
func decodeData(r io.Reader, name string) (map[string]any, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrReadData.Wrap(err).With(slog.String("file", name))
	}

	var doc any

	if err := yaml.UnmarshalWithOptions(b, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, ErrReadData.Wrap(err).With(slog.String("file", name))
	}

	switch m := doc.(type) {
	case nil:
		return map[string]any{}, nil

	case yaml.MapSlice:
		data := make(map[string]any, len(m))
		for _, item := range m {
			data[keyString(item.Key)] = fromYAML(item.Value)
		}

		return data, nil

	default:
		return nil, ErrDataFormat.With(slog.String("file", name))
	}
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}

	b, err := yaml.Marshal(k)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(b))
}

func fromYAML(v any) any {
	switch x := v.(type) {
	case yaml.MapSlice:
		h := lang.NewHash()
		for _, item := range x {
			h.Set(keyString(item.Key), fromYAML(item.Value))
		}

		return h

	case []any:
		list := make([]any, len(x))
		for i, e := range x {
			list[i] = fromYAML(e)
		}

		return list

	default:
		return v
	}
}

// applySets evaluates each key=expression assignment with expr-lang and
// stores the result in data. Expressions see the values of data, including
// earlier assignments.
func applySets(ctx context.Context, data map[string]any, sets []string) error {
	for _, set := range sets {
		key, source, ok := strings.Cut(set, "=")

		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return ErrSetFormat.With(slog.String("set", set))
		}

		program, err := expr.Compile(source, expr.Env(data))
		if err != nil {
			return ErrSetEval.Wrap(err).With(slog.String("key", key))
		}

		value, err := vm.Run(program, data)
		if err != nil {
			return ErrSetEval.Wrap(err).With(slog.String("key", key))
		}

		log.TraceContext(ctx, "context value set",
			slog.String("key", key),
			slog.String("expr", source))

		data[key] = value
	}

	return nil
}

// loadContext merges the given data files, later files overriding earlier
// ones, then applies the assignments.
func loadContext(ctx context.Context, files, sets []string) (map[string]any, error) {
	sources, closeAll, err := openDataFiles(files)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	data := make(map[string]any)

	for _, src := range sources {
		m, err := decodeData(src, src.name)
		if err != nil {
			return nil, err
		}

		maps.Copy(data, m)

		log.DebugContext(ctx, "context data loaded",
			slog.String("file", src.name),
			slog.Int("keys", len(m)))
	}

	if err := applySets(ctx, data, sets); err != nil {
		return nil, err
	}

	return data, nil
}
