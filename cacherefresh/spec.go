package cacherefresh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reddit/secureconfig.go/secrets"
)

const (
	// SecretName is the secret entry describing the refresh.
	SecretName = "TimedCacheRefresh"

	// PeriodProperty is the metadata property of SecretName holding the
	// refresh period in minutes.
	PeriodProperty = "RefreshPeriodMinutes"

	// KeySeparator separates cache keys in the value of SecretName.
	KeySeparator = ","
)

// Reasons for not deriving a Spec.
var (
	ErrNotConfigured = errors.New("cacherefresh: no " + SecretName + " secret")
	ErrNoKeys        = errors.New("cacherefresh: no cache keys")
	ErrInvalidPeriod = errors.New("cacherefresh: refresh period must be a positive integer")
)

// Spec is the set of cache keys to copy into the configuration and how often
// to do it.
//
// A Spec never changes once created.
type Spec struct {
	keys     []string
	interval time.Duration
}

// NewSpec creates a Spec.
//
// Keys are trimmed, empty and repeated keys are dropped.
func NewSpec(keys []string, interval time.Duration) (Spec, error) {
	seen := make(map[string]bool, len(keys))
	var unique []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	if len(unique) == 0 {
		return Spec{}, ErrNoKeys
	}
	if interval <= 0 {
		return Spec{}, fmt.Errorf("%w: got %v", ErrInvalidPeriod, interval)
	}
	return Spec{keys: unique, interval: interval}, nil
}

// SpecFromSecrets derives the Spec from the TimedCacheRefresh secret: its
// value is a comma separated key list, and its RefreshPeriodMinutes metadata
// the period.
//
// Returned errors wrap ErrNotConfigured, ErrNoKeys or ErrInvalidPeriod.
func SpecFromSecrets(set secrets.Set) (Spec, error) {
	entry, ok := set.Secret(SecretName)
	if !ok {
		return Spec{}, ErrNotConfigured
	}
	period, ok := entry.MetadataValue(PeriodProperty)
	if !ok {
		return Spec{}, fmt.Errorf("%w: no %s metadata", ErrInvalidPeriod, PeriodProperty)
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(period))
	if err != nil || minutes <= 0 {
		return Spec{}, fmt.Errorf("%w: %s=%q", ErrInvalidPeriod, PeriodProperty, period)
	}
	return NewSpec(strings.Split(entry.Value, KeySeparator), time.Duration(minutes)*time.Minute)
}

// Keys returns a copy of the cache keys.
func (s Spec) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Interval returns the time between two refresh passes.
func (s Spec) Interval() time.Duration {
	return s.interval
}

// IsZero reports whether s is the zero Spec.
func (s Spec) IsZero() bool {
	return len(s.keys) == 0
}
