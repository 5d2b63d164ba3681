package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Well-known keys
const (
	KeyDebug     = "rempl-host.debug"
	KeyServerURL = "rempl-host.serverUrl"
)

// DefaultServerURL is where a local rempl server serves its client page
const DefaultServerURL = "http://localhost:8177/server/client"

var ErrUnknownSetting = errors.New("setting not found")

// Setting represents a configuration setting
type Setting struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Type        string      `json:"type"` // "string", "number", "boolean", "json"
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Default     interface{} `json:"default"`
}

// Disposable stops an observation
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable
type DisposableFunc func()

// Dispose calls f
func (f DisposableFunc) Dispose() { f() }

type observer struct {
	fn func(value interface{})
}

// Store is an observable key/value settings store persisted as TOML.
type Store struct {
	mu        sync.RWMutex
	settings  map[string]Setting
	observers map[string][]*observer
	path      string
}

// NewStore creates a settings store seeded with defaults. An empty path
// keeps settings in memory only.
func NewStore(path string) *Store {
	s := &Store{
		settings:  make(map[string]Setting),
		observers: make(map[string][]*observer),
		path:      path,
	}
	s.initializeDefaults()
	return s
}

func (s *Store) initializeDefaults() {
	defaults := []Setting{
		{Key: KeyDebug, Value: false, Type: "boolean", Category: "rempl-host", Description: "Log transport traffic", Default: false},
		{Key: KeyServerURL, Value: DefaultServerURL, Type: "string", Category: "rempl-host", Description: "Default rempl server URL", Default: DefaultServerURL},
	}
	for _, d := range defaults {
		s.settings[d.Key] = d
	}
}

// Get returns the current value of key
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[key]
	if !ok {
		return nil, false
	}
	return setting.Value, true
}

// Bool returns key as a boolean; missing or non-boolean values are false
func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// String returns key as a string; missing or non-string values are empty
func (s *Store) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Set stores value under key and notifies observers when the value changed
func (s *Store) Set(key string, value interface{}) error {
	if key == "" {
		return fmt.Errorf("settings: key required")
	}

	s.mu.Lock()
	setting, ok := s.settings[key]
	if !ok {
		setting = Setting{
			Key:      key,
			Type:     inferType(value),
			Category: category(key),
		}
	}
	changed := !ok || !reflect.DeepEqual(setting.Value, value)
	setting.Value = value
	s.settings[key] = setting
	observers := append([]*observer(nil), s.observers[key]...)
	s.mu.Unlock()

	if changed {
		for _, o := range observers {
			o.fn(value)
		}
	}
	return nil
}

// Reset restores key to its default value
func (s *Store) Reset(key string) error {
	s.mu.RLock()
	setting, ok := s.settings[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return s.Set(key, setting.Default)
}

// List returns settings, optionally filtered by category, sorted by key
func (s *Store) List(category string) []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Setting
	for _, setting := range s.settings {
		if category == "" || setting.Category == category {
			out = append(out, setting)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Observe calls fn with the current value of key immediately and again on
// every change, until the returned Disposable is disposed.
func (s *Store) Observe(key string, fn func(value interface{})) Disposable {
	o := &observer{fn: fn}

	s.mu.Lock()
	s.observers[key] = append(s.observers[key], o)
	current := s.settings[key].Value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return DisposableFunc(func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			list := s.observers[key]
			for i, candidate := range list {
				if candidate == o {
					s.observers[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(s.observers[key]) == 0 {
				delete(s.observers, key)
			}
		})
	})
}

// Load reads persisted values from the TOML file. A missing file is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}

	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	for section, raw := range doc {
		table, ok := raw.(map[string]interface{})
		if !ok {
			if err := s.Set(section, raw); err != nil {
				return err
			}
			continue
		}
		for key, value := range table {
			if err := s.Set(section+"."+key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes current values to the TOML file, one table per category
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	doc := make(map[string]interface{})
	for _, setting := range s.List("") {
		section, key, ok := strings.Cut(setting.Key, ".")
		if !ok {
			doc[setting.Key] = setting.Value
			continue
		}
		table, _ := doc[section].(map[string]interface{})
		if table == nil {
			table = make(map[string]interface{})
			doc[section] = table
		}
		table[key] = setting.Value
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func category(key string) string {
	if section, _, ok := strings.Cut(key, "."); ok {
		return section
	}
	return "custom"
}

func inferType(value interface{}) string {
	switch value.(type) {
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	default:
		return "json"
	}
}
