package secrets

import "sort"

// RedactedValue replaces secret values in Set.Redacted.
const RedactedValue = "***"

// Metadata is a name/value annotation attached to an Entry.
type Metadata struct {
	Name  string `yaml:"Name" json:"Name"`
	Value string `yaml:"Value" json:"Value"`
}

// Entry is a single named secret.
//
// Names are case-sensitive.
type Entry struct {
	Name        string     `yaml:"Name" json:"Name"`
	Value       string     `yaml:"Value" json:"Value"`
	Category    string     `yaml:"Category" json:"Category,omitempty"`
	Description string     `yaml:"Description" json:"Description,omitempty"`
	Metadata    []Metadata `yaml:"MetaDataProperties" json:"MetaDataProperties,omitempty"`
}

// MetadataValue returns the value of the first metadata item named name.
func (e Entry) MetadataValue(name string) (string, bool) {
	for _, m := range e.Metadata {
		if m.Name == name {
			return m.Value, true
		}
	}
	return "", false
}

func (e Entry) clone() Entry {
	if e.Metadata != nil {
		md := make([]Metadata, len(e.Metadata))
		copy(md, e.Metadata)
		e.Metadata = md
	}
	return e
}

// Set is an ordered collection of entries with unique names.
//
// The zero value is an empty Set. A Set never changes after it's created,
// every accessor returns copies.
type Set struct {
	entries []Entry
	index   map[string]int
}

// NewSet creates a Set from entries in order.
//
// When a name appears more than once the first entry wins, and the names of
// the dropped duplicates are returned.
func NewSet(entries []Entry) (set Set, duplicates []string) {
	set.index = make(map[string]int, len(entries))
	for _, e := range entries {
		if _, ok := set.index[e.Name]; ok {
			duplicates = append(duplicates, e.Name)
			continue
		}
		set.index[e.Name] = len(set.entries)
		set.entries = append(set.entries, e.clone())
	}
	return set, duplicates
}

// Len returns the number of entries.
func (s Set) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries in order.
func (s Set) Entries() []Entry {
	entries := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		entries[i] = e.clone()
	}
	return entries
}

// Names returns entry names in order.
func (s Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Has reports whether an entry named name exists.
func (s Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Secret returns a copy of the entry named name.
func (s Set) Secret(name string) (Entry, bool) {
	i, ok := s.index[name]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// ConnectionString returns the value of the entry named name.
func (s Set) ConnectionString(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

// Redacted returns a copy of all entries with values replaced by
// RedactedValue, sorted by name, suitable for logging.
func (s Set) Redacted() []Entry {
	entries := s.Entries()
	for i := range entries {
		if entries[i].Value != "" {
			entries[i].Value = RedactedValue
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Merge returns every entry of primary followed by the entries of secondary
// whose names are absent from primary.
//
// Entries of primary are never replaced.
func Merge(primary, secondary Set) Set {
	entries := primary.Entries()
	for _, e := range secondary.entries {
		if !primary.Has(e.Name) {
			entries = append(entries, e)
		}
	}
	merged, _ := NewSet(entries)
	return merged
}

// ApplicationSecrets is the secret section of both the local configuration
// and the vault payload.
type ApplicationSecrets struct {
	UserName          string  `yaml:"UserName" json:"UserName,omitempty"`
	ConnectionStrings []Entry `yaml:"ConnectionStrings" json:"ConnectionStrings"`
}

// Set builds a Set from ConnectionStrings, see NewSet.
func (a ApplicationSecrets) Set() (Set, []string) {
	return NewSet(a.ConnectionStrings)
}
