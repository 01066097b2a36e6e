package secrets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Encoding is how a value is encoded inside a vault document.
type Encoding int

const (
	// IdentityEncoding indicates no encoding beyond JSON itself.
	IdentityEncoding Encoding = iota
	// Base64Encoding indicates that the value is base64 encoded.
	Base64Encoding
)

const (
	identityEncodingStr = "identity"
	base64EncodingStr   = "base64"
)

func (e Encoding) String() string {
	switch e {
	case IdentityEncoding:
		return identityEncodingStr
	case Base64Encoding:
		return base64EncodingStr
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// MarshalJSON returns a JSON string representation of the encoding.
func (e Encoding) MarshalJSON() ([]byte, error) {
	switch e {
	case IdentityEncoding, Base64Encoding:
		return json.Marshal(e.String())
	default:
		return nil, ErrInvalidEncoding
	}
}

// UnmarshalJSON unmarshals the given JSON data into an encoding.
//
// An empty string means IdentityEncoding.
func (e *Encoding) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case identityEncodingStr, "":
		*e = IdentityEncoding
	case base64EncodingStr:
		*e = Base64Encoding
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEncoding, s)
	}
	return nil
}

func (e Encoding) decodeValue(value string) (string, error) {
	if value == "" || e == IdentityEncoding {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var (
	_ json.Marshaler   = Encoding(0)
	_ json.Unmarshaler = (*Encoding)(nil)
)
