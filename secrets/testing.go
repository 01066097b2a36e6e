package secrets

import (
	"bytes"
	"encoding/json"

	"github.com/reddit/secureconfig.go/filewatcher"
)

// NewTestVault returns a FileVault serving the raw secrets, together with the
// MockFileWatcher holding them.
//
// This is provided to aid in testing and should not be used to create
// production vaults.
func NewTestVault(raw map[string]GenericSecret) (*FileVault, *filewatcher.MockFileWatcher, error) {
	buf, err := encodeDocument(raw)
	if err != nil {
		return nil, nil, err
	}
	watcher, err := filewatcher.NewMockFilewatcher(buf, parseVault)
	if err != nil {
		return nil, nil, err
	}
	return &FileVault{watcher: watcher}, watcher, nil
}

// UpdateTestVault replaces the secrets returned by the MockFileWatcher with
// the given raw secrets.
func UpdateTestVault(fw *filewatcher.MockFileWatcher, raw map[string]GenericSecret) error {
	buf, err := encodeDocument(raw)
	if err != nil {
		return err
	}
	return fw.Update(buf)
}

func encodeDocument(raw map[string]GenericSecret) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Document{Secrets: raw}); err != nil {
		return nil, err
	}
	return &buf, nil
}
