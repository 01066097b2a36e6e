package configbp

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// ErrSectionNotFound is returned by Bind when no key exists under the
// requested section.
var ErrSectionNotFound = errors.New("configbp: section not found")

// Bind decodes every key under section into ptr, which is typically a
// pointer to a struct with yaml tags.
//
// The flattened keys are rebuilt into a tree first, maps whose keys are all
// 0..n-1 becoming sequences. Values that read as booleans or numbers decode
// into bool and numeric fields, while string fields always receive the exact
// configured text. Unknown keys are ignored. Segment names are matched
// against yaml tags case-sensitively, using the spelling of the first layer
// that defined each key.
func (s *Store) Bind(section string, ptr interface{}) error {
	values := s.Section(section)
	if len(values) == 0 {
		return fmt.Errorf("configbp.Bind: %w: %q", ErrSectionNotFound, section)
	}
	return bindValues(values, ptr)
}

func bindValues(values map[string]string, ptr interface{}) error {
	tree := make(map[string]interface{})
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		insert(tree, strings.Split(key, KeyDelimiter), values[key])
	}

	var sb strings.Builder
	render(&sb, normalize(tree))
	if err := yaml.Unmarshal([]byte(sb.String()), ptr); err != nil {
		return fmt.Errorf("configbp.Bind: decoding into %T: %w", ptr, err)
	}
	return nil
}

func insert(tree map[string]interface{}, segments []string, value string) {
	head := segments[0]
	if len(segments) == 1 {
		if _, isTree := tree[head].(map[string]interface{}); !isTree {
			tree[head] = value
		}
		return
	}
	sub, ok := tree[head].(map[string]interface{})
	if !ok {
		// A key with children wins over a scalar with the same name.
		sub = make(map[string]interface{})
		tree[head] = sub
	}
	insert(sub, segments[1:], value)
}

func normalize(node interface{}) interface{} {
	n, ok := node.(map[string]interface{})
	if !ok {
		return node
	}
	if list, ok := asList(n); ok {
		return list
	}
	out := make(map[string]interface{}, len(n))
	for k, v := range n {
		out[k] = normalize(v)
	}
	return out
}

func asList(m map[string]interface{}) ([]interface{}, bool) {
	list := make([]interface{}, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return nil, false
		}
		list[i] = normalize(v)
	}
	return list, true
}

// Texts emitted as plain YAML scalars. yaml.v2 resolves them as booleans or
// numbers for typed fields and hands their raw text to string fields.
// Integers with leading zeros are left out, yaml.v2 reads them as octal.
var (
	plainBool  = regexp.MustCompile(`^(true|True|TRUE|false|False|FALSE)$`)
	plainInt   = regexp.MustCompile(`^[-+]?(0|[1-9][0-9]*)$`)
	plainFloat = regexp.MustCompile(`^[-+]?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
)

// render writes node as a YAML flow document.
func render(sb *strings.Builder, node interface{}) {
	switch n := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			render(sb, n[k])
		}
		sb.WriteByte('}')
	case []interface{}:
		sb.WriteByte('[')
		for i, v := range n {
			if i > 0 {
				sb.WriteString(", ")
			}
			render(sb, v)
		}
		sb.WriteByte(']')
	case string:
		if plainBool.MatchString(n) || plainInt.MatchString(n) || plainFloat.MatchString(n) {
			sb.WriteString(n)
			return
		}
		// Go escapes are a subset of YAML double-quoted escapes.
		sb.WriteString(strconv.Quote(n))
	}
}
