package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reload describes a configuration swap. Only the column mapping and the
// trade summary cap apply to a running process.
type Reload struct {
	Columns Columns
	TopN    int
	// Lookup is set when Columns or TopN differ from the previous config.
	Lookup bool
	// Restart names the json keys that changed but apply on the next start.
	Restart []string
}

// Manager owns a JSON config file and hot-reloads its lookup settings.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	seed     *Config

	mu       sync.RWMutex
	cfg      Config
	onReload func(Reload)
	watching bool
}

type ManagerOption func(*Manager)

// NewManager loads the config file, creating it from the seed config (or
// the defaults rooted at its directory) when it does not exist yet.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{debounce: 300 * time.Millisecond, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		m.path = filepath.Join(dir, "BrokerGo", "config.json")
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	cfg, err := load(m.path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if cfg, err = m.create(); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) create() (Config, error) {
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if m.seed != nil {
		cfg = *m.seed
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := save(m.path, cfg); err != nil {
		return Config{}, fmt.Errorf("write initial config: %w", err)
	}
	m.logger.Info("config created", zap.String("path", m.path))
	return cfg, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) UpdateFromJSON(jsonStr string) error {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Update validates cfg, writes it to disk and applies it. The watcher sees
// the written file as unchanged and stays quiet.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	if err := save(m.path, cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Watch calls onReload whenever the file changes on disk to a valid,
// different config. It returns once the watcher is running; the watcher
// stops with ctx. A second call only swaps the callback.
func (m *Manager) Watch(ctx context.Context, onReload func(Reload)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = onReload
	if m.watching {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Editors replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	m.watching = true
	go m.watch(ctx, w)
	return nil
}

func (m *Manager) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) == filepath.Clean(m.path) &&
				evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				settle = time.After(m.debounce)
			}
		case <-settle:
			settle = nil
			m.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file. A removed file is written back from memory and
// an invalid one is ignored.
func (m *Manager) reload() {
	cfg, err := load(m.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := save(m.path, m.Get()); err != nil {
			m.logger.Warn("config recreate failed", zap.Error(err))
		}
		return
	}
	if err != nil {
		m.logger.Warn("config reload rejected, keeping previous", zap.String("path", m.path), zap.Error(err))
		return
	}
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	r, changed := diff(m.cfg, cfg)
	m.cfg = cfg
	cb := m.onReload
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("config reloaded",
		zap.Bool("lookup", r.Lookup),
		zap.Strings("restart_required", r.Restart))
	if cb != nil {
		cb(r)
	}
}

// diff compares two configs field by field. Fields other than the lookup
// settings are reported by their json key.
func diff(old, next Config) (Reload, bool) {
	r := Reload{
		Columns: next.Columns,
		TopN:    next.TradeSummaryN,
		Lookup:  old.Columns != next.Columns || old.TradeSummaryN != next.TradeSummaryN,
	}
	ov, nv := reflect.ValueOf(old), reflect.ValueOf(next)
	t := ov.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "Columns" || f.Name == "TradeSummaryN" {
			continue
		}
		if !reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			key, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			r.Restart = append(r.Restart, key)
		}
	}
	return r, r.Lookup || len(r.Restart) > 0
}

// load reads and validates the file at path.
func load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// save replaces path atomically with the indented cfg.
func save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func WithConfigDir(dir string) ManagerOption {
	return func(m *Manager) {
		if dir != "" {
			m.path = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) {
		if path != "" {
			m.path = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithInitialConfig seeds a config file that does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(m *Manager) { m.seed = cfg }
}

func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}
