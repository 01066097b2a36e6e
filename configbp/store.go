package configbp

import (
	"sort"
	"strings"
	"sync"
)

// KeyDelimiter separates the segments of a configuration key.
const KeyDelimiter = ":"

// Getter is the read side of the configuration capability.
type Getter interface {
	// Get returns the value of key, and whether it's present at all.
	Get(key string) (string, bool)
}

// Setter is the write side of the configuration capability.
type Setter interface {
	Set(key, value string)
}

// Provider is a dynamic configuration layer, e.g. a key vault.
//
// Lookup receives keys in the case they were requested with.
type Provider interface {
	Lookup(key string) (string, bool)
}

// KeyLister is implemented by Providers that can enumerate their keys, so
// that they take part in Section and Bind.
type KeyLister interface {
	Keys() []string
}

// JoinKey joins key segments with KeyDelimiter.
func JoinKey(segments ...string) string {
	return strings.Join(segments, KeyDelimiter)
}

func fold(key string) string {
	return strings.ToLower(key)
}

type layer struct {
	name   string
	values map[string]string // folded key -> value
}

// Store is a layered key-value configuration.
//
// Precedence, highest first: values written with Set, providers (last added
// first), then static layers (last added first).
//
// A Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	layers    []layer
	providers []Provider
	overrides map[string]string
	// names maps folded keys to the spelling of the first layer defining them.
	names map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		overrides: make(map[string]string),
		names:     make(map[string]string),
	}
}

func (s *Store) remember(key string) string {
	folded := fold(key)
	if _, ok := s.names[folded]; !ok {
		s.names[folded] = key
	}
	return folded
}

// AddValues adds a static layer on top of the existing static layers.
//
// name is only used for diagnostics.
func (s *Store) AddValues(name string, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := layer{
		name:   name,
		values: make(map[string]string, len(values)),
	}
	for k, v := range values {
		l.values[s.remember(k)] = v
	}
	s.layers = append(s.layers, l)
}

// AddProvider adds a provider layer on top of the existing providers.
func (s *Store) AddProvider(p Provider) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.providers = append(s.providers, p)
	if lister, ok := p.(KeyLister); ok {
		for _, k := range lister.Keys() {
			s.remember(k)
		}
	}
}

// LayerNames returns the names of static layers, lowest precedence first.
func (s *Store) LayerNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.layers))
	for i, l := range s.layers {
		names[i] = l.name
	}
	return names
}

// Get implements Getter.
func (s *Store) Get(key string) (string, bool) {
	folded := fold(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.overrides[folded]; ok {
		return v, true
	}
	for i := len(s.providers) - 1; i >= 0; i-- {
		if v, ok := s.providers[i].Lookup(key); ok {
			return v, true
		}
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].values[folded]; ok {
			return v, true
		}
	}
	return "", false
}

// GetDefault returns the value of key, or def when it's absent.
func (s *Store) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set implements Setter.
//
// Written values take precedence over every layer.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides[s.remember(key)] = value
}

// Keys returns every known key, sorted.
//
// Keys are spelled the way the first layer defining them spelled them.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.providers {
		if lister, ok := p.(KeyLister); ok {
			for _, k := range lister.Keys() {
				s.remember(k)
			}
		}
	}
	keys := make([]string, 0, len(s.names))
	for _, name := range s.names {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Section returns a snapshot of every key under prefix, with prefix and its
// trailing delimiter removed from the returned keys.
//
// An empty prefix returns the whole configuration.
func (s *Store) Section(prefix string) map[string]string {
	folded := fold(prefix)
	if folded != "" {
		folded += KeyDelimiter
	}

	section := make(map[string]string)
	for _, key := range s.Keys() {
		if !strings.HasPrefix(fold(key), folded) {
			continue
		}
		if v, ok := s.Get(key); ok {
			section[key[len(folded):]] = v
		}
	}
	return section
}

var (
	_ Getter = (*Store)(nil)
	_ Setter = (*Store)(nil)
)
