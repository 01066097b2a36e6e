package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/errorsbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/secrets"
)

const vaultDocument = `{
	"secrets": {
		"orders-secrets": {"type": "simple", "value": "cGF5bG9hZA==", "encoding": "base64"},
		"ConnectionStrings--Cache": {"type": "simple", "value": "localhost:6379"},
		"signing-key": {"type": "versioned", "current": "new", "previous": "old"}
	}
}`

func TestParseDocument(t *testing.T) {
	got, err := secrets.ParseDocument(strings.NewReader(vaultDocument))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"orders-secrets":           "payload",
		"ConnectionStrings--Cache": "localhost:6379",
		"signing-key":              "new",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDocument mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocumentErrors(t *testing.T) {
	for _, c := range []struct {
		label string
		doc   string
		check func(error) bool
	}{
		{
			label: "too-many-fields",
			doc:   `{"secrets": {"a": {"type": "simple", "value": "x", "current": "y"}, "b": {"type": "versioned", "value": "x"}}}`,
			check: func(err error) bool {
				var tmf secrets.TooManyFieldsError
				return errors.As(err, &tmf) && errorsbp.BatchSize(err) == 2
			},
		},
		{
			label: "unsupported-type",
			doc:   `{"secrets": {"a": {"type": "credential"}}}`,
			check: func(err error) bool {
				var ute secrets.UnsupportedTypeError
				return errors.As(err, &ute) && ute.Type == "credential"
			},
		},
		{
			label: "invalid-encoding",
			doc:   `{"secrets": {"a": {"type": "simple", "value": "x", "encoding": "rot13"}}}`,
			check: func(err error) bool {
				return errors.Is(err, secrets.ErrInvalidEncoding)
			},
		},
		{
			label: "invalid-base64",
			doc:   `{"secrets": {"a": {"type": "simple", "value": "%%%", "encoding": "base64"}}}`,
			check: func(err error) bool {
				return err != nil
			},
		},
		{
			label: "unknown-field",
			doc:   `{"secrets": {}, "vault": {"url": "x"}}`,
			check: func(err error) bool {
				return err != nil
			},
		},
	} {
		t.Run(c.label, func(t *testing.T) {
			_, err := secrets.ParseDocument(strings.NewReader(c.doc))
			if !c.check(err) {
				t.Errorf("Unexpected error %v", err)
			}
		})
	}
}

func TestFileVault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")
	if err := os.WriteFile(path, []byte(vaultDocument), 0600); err != nil {
		t.Fatal(err)
	}

	vault, err := secrets.OpenVault(
		context.Background(),
		secrets.VaultConfig{
			Path:    filepath.Join(dir, secrets.NamePlaceholder+".json"),
			Timeout: time.Second,
		},
		"orders",
		log.TestWrapper(t),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer vault.Close()

	if v, ok := vault.Lookup("orders-secrets"); !ok || v != "payload" {
		t.Errorf("Lookup got (%q, %v)", v, ok)
	}
	if v, ok := vault.Lookup("ORDERS-SECRETS"); !ok || v != "payload" {
		t.Errorf("Case-insensitive lookup got (%q, %v)", v, ok)
	}
	if _, ok := vault.Lookup("missing"); ok {
		t.Error("Expected missing secret to be absent")
	}

	store := configbp.NewStore()
	store.AddValues("base", map[string]string{"ConnectionStrings:Cache": "from-file"})
	store.AddProvider(secrets.Provider{Vault: vault})
	if v, _ := store.Get("connectionstrings:cache"); v != "localhost:6379" {
		t.Errorf("Expected vault to override the file, got %q", v)
	}
	section := store.Section("ConnectionStrings")
	if section["Cache"] != "localhost:6379" {
		t.Errorf("Expected vault key in section, got %v", section)
	}

	// Rotation is picked up.
	rotated := strings.Replace(vaultDocument, "localhost:6379", "cache.internal:6379", 1)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rotated), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if v, _ := vault.Lookup("ConnectionStrings--Cache"); v == "cache.internal:6379" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("rotation not picked up")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenVaultErrors(t *testing.T) {
	t.Run("not-configured", func(t *testing.T) {
		_, err := secrets.OpenVault(context.Background(), secrets.VaultConfig{}, "orders", nil)
		if !errors.Is(err, secrets.ErrVaultNotConfigured) {
			t.Errorf("Expected ErrVaultNotConfigured, got %v", err)
		}
	})

	t.Run("no-name", func(t *testing.T) {
		_, err := secrets.OpenVault(context.Background(), secrets.VaultConfig{Path: "/tmp/{name}.json"}, "", nil)
		if !errors.Is(err, secrets.ErrVaultNotConfigured) {
			t.Errorf("Expected ErrVaultNotConfigured, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := secrets.OpenVault(
			context.Background(),
			secrets.VaultConfig{
				Path:    filepath.Join(t.TempDir(), "missing.json"),
				Timeout: 20 * time.Millisecond,
			},
			"",
			nil,
		)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected context.DeadlineExceeded, got %v", err)
		}
	})
}

func TestTestVault(t *testing.T) {
	vault, fw, err := secrets.NewTestVault(map[string]secrets.GenericSecret{
		"a": {Type: secrets.SimpleType, Value: "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := vault.Lookup("a"); v != "1" {
		t.Errorf("got %q want %q", v, "1")
	}
	if err := secrets.UpdateTestVault(fw, map[string]secrets.GenericSecret{
		"a": {Type: secrets.SimpleType, Value: "Mg==", Encoding: secrets.Base64Encoding},
	}); err != nil {
		t.Fatal(err)
	}
	if v, _ := vault.Lookup("a"); v != "2" {
		t.Errorf("got %q want %q", v, "2")
	}
	if diff := cmp.Diff([]string{"a"}, vault.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestProviderKeys(t *testing.T) {
	p := secrets.Provider{Vault: secrets.MapVault{"ConnectionStrings--Db": "x", "Plain": "y"}}
	if diff := cmp.Diff([]string{"ConnectionStrings:Db", "Plain"}, p.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if v, ok := p.Lookup("ConnectionStrings:Db"); !ok || v != "x" {
		t.Errorf("Lookup got (%q, %v)", v, ok)
	}
	if _, ok := (secrets.Provider{}).Lookup("x"); ok {
		t.Error("Expected nil vault to have no keys")
	}
}
