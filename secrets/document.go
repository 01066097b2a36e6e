package secrets

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/reddit/secureconfig.go/errorsbp"
)

// Secret types in a vault document.
const (
	// SimpleType secrets are basic string secrets.
	SimpleType = "simple"

	// VersionedType secrets are secrets that can be rotated gracefully.
	// Only the current version is served.
	VersionedType = "versioned"
)

// Document is the raw vault document, as rendered to disk by a vault agent:
//
//	{
//	  "secrets": {
//	    "<name>": {"type": "simple", "value": "...", "encoding": "base64"}
//	  }
//	}
type Document struct {
	Secrets map[string]GenericSecret `json:"secrets"`
}

// GenericSecret is a placeholder to fit all types of secrets when parsing the
// document before serving them.
type GenericSecret struct {
	Type     string   `json:"type"`
	Value    string   `json:"value,omitempty"`
	Encoding Encoding `json:"encoding"`

	Current  string `json:"current,omitempty"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
}

// Validate checks the Document for secrets carrying fields of another type.
//
// When this function returns a non-nil error, the error is either a
// TooManyFieldsError, or an errorsbp.Batch containing multiple
// TooManyFieldsError.
func (d *Document) Validate() error {
	var batch errorsbp.Batch
	for key, value := range d.Secrets {
		switch value.Type {
		case SimpleType:
			if value.Current != "" || value.Previous != "" || value.Next != "" {
				batch.Add(TooManyFieldsError{
					SecretType: SimpleType,
					Key:        key,
				})
			}
		case VersionedType:
			if value.Value != "" {
				batch.Add(TooManyFieldsError{
					SecretType: VersionedType,
					Key:        key,
				})
			}
		}
	}
	return batch.Compile()
}

// Values decodes every secret of the document into its plain string value.
func (d *Document) Values() (map[string]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(d.Secrets))
	for key, secret := range d.Secrets {
		var raw string
		switch secret.Type {
		case SimpleType:
			raw = secret.Value
		case VersionedType:
			raw = secret.Current
		default:
			return nil, UnsupportedTypeError{Key: key, Type: secret.Type}
		}
		value, err := secret.Encoding.decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("secrets: decoding %q: %w", key, err)
		}
		values[key] = value
	}
	return values, nil
}

// ParseDocument reads a vault document and returns its decoded values.
//
// Unknown fields are rejected.
func ParseDocument(r io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("secrets.ParseDocument: %w", err)
	}
	return doc.Values()
}
