package configbp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/reddit/secureconfig.go/internal/limitopen"
)

// EnvSegmentSeparator replaces KeyDelimiter in environment variable names,
// which can't contain colons.
const EnvSegmentSeparator = "__"

// FlattenYAML reads a YAML document and flattens it into colon-separated
// keys.
//
// Environment variables (e.g. $FOO and ${FOO}) are substituted before
// parsing. Sequence items use their index as the key segment, null values
// become empty strings. An empty document yields an empty map.
func FlattenYAML(r io.Reader) (map[string]string, error) {
	var doc interface{}
	err := yaml.NewDecoder(newEnvsubstReader(r)).Decode(&doc)
	if errors.Is(err, io.EOF) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("configbp: parsing YAML: %w", err)
	}

	values := make(map[string]string)
	switch doc.(type) {
	case nil:
	case map[interface{}]interface{}:
		flatten("", doc, values)
	default:
		return nil, fmt.Errorf("configbp: YAML document root must be a mapping, got %T", doc)
	}
	return values, nil
}

func flatten(prefix string, node interface{}, values map[string]string) {
	child := func(segment string) string {
		if prefix == "" {
			return segment
		}
		return prefix + KeyDelimiter + segment
	}

	switch n := node.(type) {
	case map[interface{}]interface{}:
		for k, v := range n {
			flatten(child(fmt.Sprint(k)), v, values)
		}
	case []interface{}:
		for i, v := range n {
			flatten(child(strconv.Itoa(i)), v, values)
		}
	case nil:
		values[prefix] = ""
	default:
		values[prefix] = fmt.Sprint(n)
	}
}

// LoadFile reads and flattens the YAML file at path.
//
// It returns an error wrapping os.ErrNotExist when the file doesn't exist.
func LoadFile(path string) (map[string]string, error) {
	if err := checkExt(path); err != nil {
		return nil, err
	}
	f, _, err := limitopen.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := FlattenYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%w (file %q)", err, path)
	}
	return values, nil
}

// EnvironmentValues converts environment entries in KEY=VALUE form into
// configuration keys.
//
// Only variables starting with prefix (compared case-insensitively) are
// used, and the prefix is removed. "__" in names is replaced by ":".
func EnvironmentValues(prefix string, environ []string) map[string]string {
	values := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || len(name) < len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			continue
		}
		key := strings.ReplaceAll(name[len(prefix):], EnvSegmentSeparator, KeyDelimiter)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

// AddFile adds the YAML file at path as a static layer.
//
// When optional is true a missing file is silently skipped.
func (s *Store) AddFile(path string, optional bool) error {
	values, err := LoadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	s.AddValues(path, values)
	return nil
}

// AddEnvironment adds the process environment variables starting with prefix
// as a static layer.
func (s *Store) AddEnvironment(prefix string) {
	s.AddValues("env:"+prefix, EnvironmentValues(prefix, os.Environ()))
}
