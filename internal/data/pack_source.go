package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is a YAML definition pack: a single file or a directory of *.yaml/*.yml
// files whose top-level keys are data type names, e.g.
//
//	elements:
//	  - id: core:fire
//	    max_value: 100
//	combinations:
//	  - id: core:steam_body
//	    required_elements: [core:fire, core:water]
type Pack struct {
	FS        fs.FS
	Path      string
	Priority  int
	HotReload bool
}

// Files returns the pack's YAML files in load order.
func (p Pack) Files() ([]string, error) {
	info, err := fs.Stat(p.FS, p.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{p.Path}, nil
	}

	entries, err := fs.ReadDir(p.FS, p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading pack dir %s: %w", p.Path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path.Join(p.Path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// PackSource serves one data type's section of a Pack.
type PackSource[T Record] struct {
	pack     Pack
	dataType DataType
}

// NewPackSource creates a source reading dt's section from pack.
func NewPackSource[T Record](pack Pack, dt DataType) *PackSource[T] {
	return &PackSource[T]{pack: pack, dataType: dt}
}

func (s *PackSource[T]) SourceType() string      { return "pack:" + s.pack.Path }
func (s *PackSource[T]) Priority() int           { return s.pack.Priority }
func (s *PackSource[T]) SupportsHotReload() bool { return s.pack.HotReload }

// Available reports whether the pack path exists.
func (s *PackSource[T]) Available() bool {
	_, err := fs.Stat(s.pack.FS, s.pack.Path)
	return err == nil
}

// Load decodes the section of every pack file. Files are merged in name
// order; an id already seen in an earlier file is kept.
func (s *PackSource[T]) Load(ctx context.Context) (map[string]T, error) {
	files, err := s.pack.Files()
	if err != nil {
		return nil, fmt.Errorf("listing pack %s: %w", s.pack.Path, err)
	}

	out := make(map[string]T)
	var errs []error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		section, err := readSection(s.pack.FS, f, s.dataType)
		if err != nil {
			// one broken file does not hide the rest of the pack
			slog.Warn("skipping pack file", "type", s.dataType, "file", f, "err", err)
			errs = append(errs, err)
			continue
		}
		for id, def := range decodeRecords[T](s.dataType, section, f) {
			if _, ok := out[id]; !ok {
				out[id] = def
			}
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func readSection(fsys fs.FS, file string, dt DataType) (*yaml.Node, error) {
	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	section, ok := doc[string(dt)]
	if !ok {
		return nil, nil
	}
	return &section, nil
}
