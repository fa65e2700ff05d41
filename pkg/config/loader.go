package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// OnChange is called with the freshly reloaded config whenever Watch
// detects the underlying file changed.
type OnChange func(*Config)

// Loader reads, parses, and watches a single YAML (or JSON, since YAML is a
// superset of it) configuration file.
type Loader struct {
	path     string
	onChange OnChange

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback invoked after each successful reload
// triggered by Watch.
func WithOnChange(fn OnChange) LoaderOption {
	return func(l *Loader) { l.onChange = fn }
}

// NewLoader creates a Loader for the file at path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file, expands environment variable references, decodes it
// into a Config, and fills in defaults and validates the result.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	raw, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", l.path, err)
	}

	expanded := expandEnvVars(raw)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", l.path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", l.path, err)
	}
	return cfg, nil
}

// parseBytes tries YAML first (a superset of JSON) and falls back to JSON
// so callers can point a Loader at either extension.
func parseBytes(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err == nil {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("not valid YAML or JSON: %w", err)
	}
	return out, nil
}

func decodeConfig(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Watch blocks, reloading the file and invoking the registered OnChange
// callback each time fsnotify reports it changed, until ctx is canceled or
// Close is called. It watches the file's containing directory rather than
// the file itself, since some editors replace the file (rename+create)
// rather than writing it in place, and a watch on the old inode would never
// fire again.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		watcher.Close()
		return fmt.Errorf("config: loader closed")
	}
	l.watcher = watcher
	l.mu.Unlock()

	defer watcher.Close()

	target := filepath.Clean(l.path)
	var debounce *time.Timer
	debounced := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					select {
					case debounced <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(100 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "path", l.path, "error", err)
		case <-debounced:
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Warn("config reload failed", "path", l.path, "error", err)
				continue
			}
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close stops any in-progress Watch call.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// LoadConfig is a convenience wrapper that creates a Loader and performs a
// single Load.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	return NewLoader(path).Load(ctx)
}
