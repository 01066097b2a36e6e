package secrets

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// SectionName is the name of the secret section, in the local configuration
// as well as in the vault payload.
const SectionName = "ApplicationSecrets"

// DecodePayload decodes a vault payload: base64 encoded JSON object with an
// ApplicationSecrets member.
//
// Returned errors wrap one of ErrInvalidBase64, ErrInvalidPayload and
// ErrSectionMissing.
func DecodePayload(value string) (ApplicationSecrets, error) {
	var result ApplicationSecrets

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if doc == nil {
		// The payload was JSON null.
		return result, ErrInvalidPayload
	}

	section, ok := doc[SectionName]
	if !ok || bytes.Equal(bytes.TrimSpace(section), []byte("null")) {
		return result, ErrSectionMissing
	}
	if err := json.Unmarshal(section, &result); err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, SectionName, err)
	}
	return result, nil
}

// EncodePayload is the reverse of DecodePayload.
func EncodePayload(secrets ApplicationSecrets) (string, error) {
	if secrets.ConnectionStrings == nil {
		secrets.ConnectionStrings = []Entry{}
	}
	data, err := json.Marshal(map[string]ApplicationSecrets{
		SectionName: secrets,
	})
	if err != nil {
		return "", fmt.Errorf("secrets.EncodePayload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
