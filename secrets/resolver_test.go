package secrets_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/prometheusbp/promtest"
	"github.com/reddit/secureconfig.go/secrets"
)

const vaultKey = "orders-secrets"

func storeWith(t *testing.T, values map[string]string) *configbp.Store {
	t.Helper()
	store := configbp.NewStore()
	store.AddValues("test", values)
	return store
}

func payload(t *testing.T, s secrets.ApplicationSecrets) string {
	t.Helper()
	encoded, err := secrets.EncodePayload(s)
	if err != nil {
		t.Fatal(err)
	}
	return encoded
}

func TestResolveScenario(t *testing.T) {
	local := secrets.ApplicationSecrets{
		UserName: "local-user",
		ConnectionStrings: []secrets.Entry{
			{Name: "Db", Value: "local-conn"},
		},
	}
	vault := secrets.ApplicationSecrets{
		ConnectionStrings: []secrets.Entry{
			{Name: "Db", Value: "vault-conn"},
			{Name: "Cache", Value: "cache-conn"},
		},
	}
	store := storeWith(t, map[string]string{vaultKey: payload(t, vault)})

	result := secrets.Resolve(context.Background(), store, vaultKey, local, nil)
	if result.Status != secrets.StatusVault {
		t.Errorf("Expected StatusVault, got %v (reason %v)", result.Status, result.Reason)
	}
	if result.Reason != nil {
		t.Errorf("Expected no reason, got %v", result.Reason)
	}
	want := []secrets.Entry{
		{Name: "Db", Value: "vault-conn"},
		{Name: "Cache", Value: "cache-conn"},
	}
	if diff := cmp.Diff(want, result.Set.Entries()); diff != "" {
		t.Errorf("merged set mismatch (-want +got):\n%s", diff)
	}
	if result.UserName != "local-user" {
		t.Errorf("Expected local user name when the vault has none, got %q", result.UserName)
	}
}

func TestResolveVaultUserName(t *testing.T) {
	store := storeWith(t, map[string]string{
		vaultKey: payload(t, secrets.ApplicationSecrets{UserName: "vault-user"}),
	})
	result := secrets.Resolve(
		context.Background(),
		store,
		vaultKey,
		secrets.ApplicationSecrets{UserName: "local-user"},
		nil,
	)
	if result.UserName != "vault-user" {
		t.Errorf("Expected vault user name, got %q", result.UserName)
	}
}

func TestResolveFallback(t *testing.T) {
	local := secrets.ApplicationSecrets{
		ConnectionStrings: []secrets.Entry{
			{Name: "Db", Value: "local-conn", Metadata: []secrets.Metadata{{Name: "Owner", Value: "ops"}}},
			{Name: "FileLogger", Value: "LogPath=logs;LogName=app.log"},
		},
	}
	encode := func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	}

	for _, c := range []struct {
		label  string
		values map[string]string
		reason error
		label2 string
	}{
		{
			label:  "missing",
			values: map[string]string{},
			reason: secrets.ErrVaultValueMissing,
			label2: "missing",
		},
		{
			label:  "empty",
			values: map[string]string{vaultKey: ""},
			reason: secrets.ErrVaultValueMissing,
			label2: "missing",
		},
		{
			label:  "base64",
			values: map[string]string{vaultKey: "not base64!"},
			reason: secrets.ErrInvalidBase64,
			label2: "base64",
		},
		{
			label:  "json",
			values: map[string]string{vaultKey: encode("{not json")},
			reason: secrets.ErrInvalidPayload,
			label2: "payload",
		},
		{
			label:  "array",
			values: map[string]string{vaultKey: encode(`[1, 2]`)},
			reason: secrets.ErrInvalidPayload,
			label2: "payload",
		},
		{
			label:  "section-missing",
			values: map[string]string{vaultKey: encode(`{"Other": {}}`)},
			reason: secrets.ErrSectionMissing,
			label2: "section",
		},
		{
			label:  "section-null",
			values: map[string]string{vaultKey: encode(`{"ApplicationSecrets": null}`)},
			reason: secrets.ErrSectionMissing,
			label2: "section",
		},
		{
			label:  "section-wrong-shape",
			values: map[string]string{vaultKey: encode(`{"ApplicationSecrets": {"ConnectionStrings": "x"}}`)},
			reason: secrets.ErrInvalidPayload,
			label2: "payload",
		},
	} {
		t.Run(c.label, func(t *testing.T) {
			defer promtest.NewPrometheusMetricTest(
				t,
				"vault fallback",
				secrets.VaultFallbacks(),
				prometheus.Labels{"reason": c.label2},
			).CheckDelta(1)

			var recorder log.Recorder
			result := secrets.Resolve(context.Background(), storeWith(t, c.values), vaultKey, local, &recorder)
			if result.Status != secrets.StatusDegraded {
				t.Errorf("Expected StatusDegraded, got %v", result.Status)
			}
			if !errors.Is(result.Reason, c.reason) {
				t.Errorf("Expected reason %v, got %v", c.reason, result.Reason)
			}
			if diff := cmp.Diff(local.ConnectionStrings, result.Set.Entries()); diff != "" {
				t.Errorf("Expected local set exactly (-want +got):\n%s", diff)
			}
			if _, ok := recorder.Find("secrets: vault secrets unavailable, using local secrets only"); !ok {
				t.Errorf("Expected the degradation to be logged, got %+v", recorder.Entries())
			}
		})
	}
}

func TestResolveNoVaultKey(t *testing.T) {
	local := secrets.ApplicationSecrets{
		ConnectionStrings: []secrets.Entry{{Name: "Db", Value: "local-conn"}},
	}
	result := secrets.Resolve(context.Background(), nil, "", local, nil)
	if result.Status != secrets.StatusLocalOnly {
		t.Errorf("Expected StatusLocalOnly, got %v", result.Status)
	}
	if result.Reason != nil {
		t.Errorf("Expected no reason, got %v", result.Reason)
	}
	if diff := cmp.Diff(local.ConnectionStrings, result.Set.Entries()); diff != "" {
		t.Errorf("set mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDuplicates(t *testing.T) {
	local := secrets.ApplicationSecrets{
		ConnectionStrings: []secrets.Entry{
			{Name: "Db", Value: "first"},
			{Name: "Db", Value: "second"},
		},
	}
	var recorder log.Recorder
	result := secrets.Resolve(context.Background(), nil, "", local, &recorder)
	if v, _ := result.Set.ConnectionString("Db"); v != "first" {
		t.Errorf("Expected first duplicate to win, got %q", v)
	}
	if diff := cmp.Diff([]string{"Db"}, result.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
	if _, ok := recorder.Find("secrets: duplicated secret names ignored"); !ok {
		t.Error("Expected duplicates to be logged")
	}
}

func TestResolveThroughVaultProvider(t *testing.T) {
	vault := secrets.MapVault{
		vaultKey: payload(t, secrets.ApplicationSecrets{
			ConnectionStrings: []secrets.Entry{{Name: "Cache", Value: "localhost:6379"}},
		}),
	}
	store := configbp.NewStore()
	store.AddProvider(secrets.Provider{Vault: vault})

	result := secrets.Resolve(context.Background(), store, vaultKey, secrets.ApplicationSecrets{}, nil)
	if result.Status != secrets.StatusVault {
		t.Fatalf("Expected StatusVault, got %v (%v)", result.Status, result.Reason)
	}
	if v, ok := result.Set.ConnectionString("Cache"); !ok || v != "localhost:6379" {
		t.Errorf("Unexpected Cache value (%q, %v)", v, ok)
	}
}

func TestStatusString(t *testing.T) {
	for status, want := range map[secrets.Status]string{
		secrets.StatusVault:     "vault",
		secrets.StatusLocalOnly: "local-only",
		secrets.StatusDegraded:  "degraded",
		secrets.Status(42):      "unknown",
	} {
		if got := status.String(); got != want {
			t.Errorf("%d.String() got %q want %q", int(status), got, want)
		}
	}
}
