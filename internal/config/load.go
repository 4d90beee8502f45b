package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/multierr"
)

// filePattern selects configuration files inside a directory.
const filePattern = "**/*.{toml,yaml,yml,json,jsonc}"

// Load reads the configuration at path. A directory merges every
// configuration file below it in lexical path order.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = collect(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("load config: %w: no configuration files in %s", ErrInvalid, path)
		}
	}

	sources := make([]*source, 0, len(files))
	for _, file := range files {
		format, err := FormatOf(file)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		src, err := decodeSource(file, data, format)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return build(sources)
}

// Parse decodes a single configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	src, err := decodeSource(string(format), data, format)
	if err != nil {
		return nil, err
	}
	return build([]*source{src})
}

// collect finds configuration files below dir.
func collect(dir string) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(filePattern, filepath.ToSlash(rel)); !ok {
			return nil
		}

		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// build merges sources, decodes every entry and validates the result.
// All problems found are reported together.
func build(sources []*source) (*Config, error) {
	var (
		cfg    Config
		errs   error
		origin = map[string]string{}
	)

	claim := func(section, name, file string) bool {
		key := section + "." + name
		if prev, ok := origin[key]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s %q defined in %s and %s", ErrDuplicateName, section, name, prev, file))
			return false
		}
		origin[key] = file
		return true
	}

	for _, src := range sources {
		for _, key := range src.keys(src.root) {
			switch key {
			case "frontend", "backend", "data":
			default:
				errs = multierr.Append(errs, fmt.Errorf("%w: %s: unknown section %q", ErrInvalid, src.name, key))
			}
		}

		frontends, err := section(src, "frontend")
		errs = multierr.Append(errs, err)
		for _, name := range src.keys(frontends, "frontend") {
			if !claim("frontend", name, src.name) {
				continue
			}
			f, err := decodeFrontend(name, frontends[name])
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			cfg.Frontends = append(cfg.Frontends, f)
		}

		backends, err := section(src, "backend")
		errs = multierr.Append(errs, err)
		for _, name := range src.keys(backends, "backend") {
			if !claim("backend", name, src.name) {
				continue
			}
			b, err := decodeBackend(name, backends[name])
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			cfg.Backends = append(cfg.Backends, b)
		}

		data, err := section(src, "data")
		errs = multierr.Append(errs, err)
		for _, name := range src.keys(data, "data") {
			if !claim("data", name, src.name) {
				continue
			}
			d, err := decodeData(src, name, data[name])
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			cfg.Data = append(cfg.Data, d)
		}
	}

	if errs != nil {
		return nil, errs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func section(src *source, name string) (map[string]any, error) {
	raw, ok := src.root[name]
	if !ok {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: section %q must be a table", ErrInvalid, src.name, name)
	}
	return m, nil
}
