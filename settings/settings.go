package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ghyeongl/imgview/logging"
)

// Config keys.
const (
	KeyExtensions    = "browse.extensions"
	KeySort          = "browse.sort"
	KeyShowHidden    = "browse.show_hidden"
	KeySortFolders   = "browse.sort_folders"
	KeyLocale        = "browse.locale"
	KeyIgnore        = "browse.ignore"
	KeyCacheCapacity = "cache.capacity"
	KeyLoaderWorkers = "loader.workers"
	KeyStopTimeout   = "watcher.stop_timeout"
	KeyTrashDir      = "fileops.trash_dir"
	KeyLogDir        = "log.dir"
	KeyLogLevel      = "log.level"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "~/.config/imgview/config.yaml"

// ErrConfigExists is returned by WriteDefault when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

var defaults = map[string]any{
	KeyExtensions:    []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"},
	KeySort:          "name-asc",
	KeyShowHidden:    false,
	KeySortFolders:   true,
	KeyLocale:        "",
	KeyIgnore:        []string{},
	KeyCacheCapacity: 0,
	KeyLoaderWorkers: 4,
	KeyStopTimeout:   "2s",
	KeyTrashDir:      "~/.local/share/Trash",
	KeyLogDir:        "",
	KeyLogLevel:      "info",
}

// Snapshot is an immutable view of the configuration at one point in time.
type Snapshot struct {
	Extensions    []string // lowercase, without dot
	Sort          string
	ShowHidden    bool
	SortFolders   bool
	Locale        string
	Ignore        []string
	CacheCapacity uint64
	LoaderWorkers int
	StopTimeout   time.Duration
	TrashDir      string
	LogDir        string
	LogLevel      string
}

// ExtensionSet returns the supported extensions as a lookup set.
func (s Snapshot) ExtensionSet() map[string]struct{} {
	return lo.SliceToMap(s.Extensions, func(ext string) (string, struct{}) {
		return ext, struct{}{}
	})
}

// Default returns the snapshot built from the built-in defaults only.
func Default() Snapshot {
	v := viper.New()
	SetDefaults(v)
	return read(v)
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// NormalizeExtensions lowercases, strips leading dots, and drops blanks and duplicates.
func NormalizeExtensions(exts []string) []string {
	out := lo.Map(exts, func(ext string, _ int) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	})
	return lo.Uniq(lo.Compact(out))
}

func read(v *viper.Viper) Snapshot {
	timeout := v.GetDuration(KeyStopTimeout)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	workers := v.GetInt(KeyLoaderWorkers)
	if workers < 1 {
		workers = 1
	}
	return Snapshot{
		Extensions:    NormalizeExtensions(v.GetStringSlice(KeyExtensions)),
		Sort:          v.GetString(KeySort),
		ShowHidden:    v.GetBool(KeyShowHidden),
		SortFolders:   v.GetBool(KeySortFolders),
		Locale:        v.GetString(KeyLocale),
		Ignore:        lo.Compact(v.GetStringSlice(KeyIgnore)),
		CacheCapacity: v.GetUint64(KeyCacheCapacity),
		LoaderWorkers: workers,
		StopTimeout:   timeout,
		TrashDir:      expand(v.GetString(KeyTrashDir)),
		LogDir:        expand(v.GetString(KeyLogDir)),
		LogLevel:      v.GetString(KeyLogLevel),
	}
}

func expand(p string) string {
	if p == "" {
		return ""
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return p
	}
	return out
}

// Manager owns the viper instance and publishes a new Snapshot on every
// config file change.
type Manager struct {
	v *viper.Viper

	mu      sync.RWMutex
	snap    Snapshot
	changes chan Snapshot
}

// New builds a Manager over an already configured viper instance.
func New(v *viper.Viper) *Manager {
	return &Manager{
		v:       v,
		snap:    read(v),
		changes: make(chan Snapshot, 1),
	}
}

// Load creates a viper instance with defaults, IMGVIEW_* env overrides and,
// when present, the YAML file at path.
func Load(path string) (*Manager, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("imgview")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultConfigPath
	}
	path = expand(path)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
		logging.Sub("settings").Debug("no config file, using defaults", "path", path)
	}

	return New(v), nil
}

// Viper exposes the underlying instance so commands can bind flags.
func (m *Manager) Viper() *viper.Viper {
	return m.v
}

// Snapshot returns the current configuration.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Changes delivers the latest snapshot after each reload. Only the newest
// pending snapshot is kept.
func (m *Manager) Changes() <-chan Snapshot {
	return m.changes
}

// Reload re-reads the viper state and publishes the new snapshot.
func (m *Manager) Reload() Snapshot {
	m.mu.Lock()
	m.snap = read(m.v)
	snap := m.snap
	// keep only the newest snapshot
	select {
	case <-m.changes:
	default:
	}
	m.changes <- snap
	m.mu.Unlock()

	logging.Sub("settings").Info("settings reloaded", "extensions", len(snap.Extensions), "sort", snap.Sort)
	return snap
}

// Watch enables live reload of the config file.
func (m *Manager) Watch() {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(m.v.ConfigFileUsed()); err != nil {
		logging.Sub("settings").Debug("config watch skipped", "path", m.v.ConfigFileUsed(), "err", err)
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		logging.Sub("settings").Debug("config changed", "path", e.Name, "op", e.Op.String())
		m.Reload()
	})
	m.v.WatchConfig()
}

// WriteDefault writes the default configuration as YAML to path.
func WriteDefault(path string, force bool) error {
	path = expand(path)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}

	v := viper.New()
	SetDefaults(v)
	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
