package secrets

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is the error returned by the parser when we got an invalid
// encoding in the vault document.
var ErrInvalidEncoding = errors.New("secrets: invalid encoding, expected identity, base64 or empty")

// Reasons for falling back to local secrets only, see Result.Reason.
var (
	// ErrVaultValueMissing means the configured vault key has no value.
	ErrVaultValueMissing = errors.New("secrets: vault key has no value")
	// ErrInvalidBase64 means the vault value is not valid base64.
	ErrInvalidBase64 = errors.New("secrets: vault value is not valid base64")
	// ErrInvalidPayload means the decoded vault value is not a JSON object of
	// the expected shape.
	ErrInvalidPayload = errors.New("secrets: vault payload is not a valid JSON object")
	// ErrSectionMissing means the payload has no ApplicationSecrets object.
	ErrSectionMissing = errors.New("secrets: vault payload has no " + SectionName + " section")
)

// ErrVaultNotConfigured is returned by OpenVault when there's no path to
// open.
var ErrVaultNotConfigured = errors.New("secrets: vault path not configured")

// TooManyFieldsError is a type of errors could be returned by
// Document.Validate.
//
// Note that Document.Validate could also return an errorsbp.Batch containing
// multiple TooManyFieldsError.
type TooManyFieldsError struct {
	Key        string
	SecretType string
}

func (e TooManyFieldsError) Error() string {
	return fmt.Sprintf(
		"secrets: expected %q secret but other fields were present for %q",
		e.SecretType,
		e.Key,
	)
}

// UnsupportedTypeError is returned when a vault document contains a secret of
// a type that can't be served as a plain string.
type UnsupportedTypeError struct {
	Key  string
	Type string
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("secrets: unsupported secret type %q for %q", e.Type, e.Key)
}
