package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/atomik/internal/config/layer"
)

// IncludeKey names the top-level entry listing further files to load
// beneath the current one. Paths are relative to the including file.
const IncludeKey = "@include"

const maxIncludeDepth = 8

var (
	// ErrUnsupportedFormat is returned for a file extension without a decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrIncludeCycle is returned when a file includes itself, directly or not.
	ErrIncludeCycle = errors.New("config include cycle")

	// ErrIncludeDepth is returned when includes nest deeper than allowed.
	ErrIncludeDepth = errors.New("config includes nested too deeply")
)

// DecodeFunc turns raw file contents into a nested map.
type DecodeFunc func(raw []byte) (map[string]any, error)

var decoders = map[string]DecodeFunc{
	".toml": decodeTOML,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// Supported reports whether path has an extension LoadFile can decode.
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParseError reports a file that could not be decoded. Line and Column
// are zero when the decoder does not report a position.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode parses raw as the format implied by path's extension. Keys
// containing "/" are expanded into nested maps.
func Decode(path string, raw []byte) (map[string]any, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	data, err := decode(raw)
	if err != nil {
		perr := &ParseError{Path: path, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	if data == nil {
		data = make(map[string]any)
	}
	return layer.Dimensionize(data), nil
}

func decodeTOML(raw []byte) (map[string]any, error) {
	var data map[string]any
	err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&data)
	return data, err
}

func decodeYAML(raw []byte) (map[string]any, error) {
	var data map[string]any
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	err := yaml.Unmarshal(raw, &data)
	return data, err
}

// LoadFile reads and decodes path from fsys, resolving includes. The
// including file wins over anything it includes; later includes win
// over earlier ones. A missing file is an error wrapping fs.ErrNotExist.
func LoadFile(fsys FileSystem, path string) (map[string]any, error) {
	r := &includeReader{fs: fsys}
	return r.load(filepath.Clean(path))
}

type includeReader struct {
	fs    FileSystem
	chain []string
}

func (r *includeReader) load(path string) (map[string]any, error) {
	if slices.Contains(r.chain, path) {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(r.chain, path), " -> "))
	}
	if len(r.chain) >= maxIncludeDepth {
		return nil, fmt.Errorf("%w: %s", ErrIncludeDepth, path)
	}

	raw, err := ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	data, err := Decode(path, raw)
	if err != nil {
		return nil, err
	}

	includes, ok := data[IncludeKey]
	if !ok {
		return data, nil
	}
	delete(data, IncludeKey)

	r.chain = append(r.chain, path)
	defer func() { r.chain = r.chain[:len(r.chain)-1] }()

	list, ok := layer.ToList(includes)
	if !ok {
		list = []any{includes}
	}
	base := make(map[string]any)
	for _, item := range list {
		name, ok := item.(string)
		if !ok || name == "" {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("%s entries must be file names, got %v", IncludeKey, item)}
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(filepath.Dir(path), name)
		}
		sub, err := r.load(filepath.Clean(name))
		if err != nil {
			return nil, err
		}
		base = layer.DeepMerge(base, sub)
	}
	return layer.DeepMerge(base, data), nil
}
