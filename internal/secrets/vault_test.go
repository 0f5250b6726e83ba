package secrets

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestVaultLookup(t *testing.T) {
	t.Parallel()

	var reads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/kv/data/credwatch" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("X-Vault-Token"); got != "s.token" {
			t.Errorf("X-Vault-Token = %q", got)
		}
		reads++
		writeJSON(t, w, map[string]any{
			"data": map[string]any{
				"data": map[string]any{
					"ENTRA_CLIENT_SECRET": "graph-secret",
					"SMTP_PASSWORD":       "",
				},
				"metadata": map[string]any{"version": 3},
			},
		})
	}))
	defer server.Close()

	v, err := NewVault(Options{Address: server.URL, Token: "s.token", KVMount: "kv", SecretPath: "/credwatch/"})
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}

	ctx := context.Background()
	got, err := v.Lookup(ctx, "ENTRA_CLIENT_SECRET")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != "graph-secret" {
		t.Fatalf("Lookup() = %q, want %q", got, "graph-secret")
	}

	if _, err := v.Lookup(ctx, "SMTP_PASSWORD"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Lookup(empty) error = %v, want ErrSecretNotFound", err)
	}
	if _, err := v.Lookup(ctx, "MISSING"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Lookup(missing) error = %v, want ErrSecretNotFound", err)
	}
	if reads != 1 {
		t.Fatalf("reads = %d, want 1", reads)
	}
}

func TestVaultLookupMissingSecret(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v, err := NewVault(Options{Address: server.URL, Token: "s.token", SecretPath: "credwatch"})
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}
	if _, err := v.Lookup(context.Background(), "ENTRA_CLIENT_SECRET"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestNewVaultValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewVault(Options{Token: "t", SecretPath: "p"}); err == nil {
		t.Fatal("expected address error")
	}
	if _, err := NewVault(Options{Address: "http://127.0.0.1:8200", SecretPath: "p"}); err == nil {
		t.Fatal("expected token error")
	}
	if _, err := NewVault(Options{Address: "http://127.0.0.1:8200", Token: "t"}); err == nil {
		t.Fatal("expected secret path error")
	}
}

type staticLookuper map[string]string

func (s staticLookuper) Lookup(_ context.Context, field string) (string, error) {
	if v, ok := s[field]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func TestResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got, err := Resolve(ctx, nil, "X", "from-env"); err != nil || got != "from-env" {
		t.Fatalf("Resolve(env) = %q, %v", got, err)
	}
	if got, err := Resolve(ctx, staticLookuper{"X": "from-vault"}, "X", ""); err != nil || got != "from-vault" {
		t.Fatalf("Resolve(vault) = %q, %v", got, err)
	}
	if _, err := Resolve(ctx, nil, "X", " "); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Resolve(none) error = %v, want ErrSecretNotFound", err)
	}
}

func tlsVaultServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data": map[string]any{"data": map[string]any{"ENTRA_CLIENT_SECRET": "tls-secret"}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVaultLookup_TLS(t *testing.T) {
	t.Parallel()

	server := tlsVaultServer(t)
	caFile := filepath.Join(t.TempDir(), "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	if err := os.WriteFile(caFile, caPEM, 0o600); err != nil {
		t.Fatalf("write CA file: %v", err)
	}

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "custom CA", opts: Options{TLSCACertFile: caFile}},
		{name: "skip verify", opts: Options{TLSSkipVerify: true}},
		{name: "untrusted", opts: Options{}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			opts.Address = server.URL
			opts.Token = "s.token"
			opts.SecretPath = "credwatch"
			v, err := NewVault(opts)
			if err != nil {
				t.Fatalf("NewVault() error = %v", err)
			}
			got, err := v.Lookup(context.Background(), "ENTRA_CLIENT_SECRET")
			if tc.wantErr {
				if err == nil {
					t.Fatal("Lookup() succeeded against an untrusted certificate")
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != "tls-secret" {
				t.Fatalf("Lookup() = %q, want %q", got, "tls-secret")
			}
		})
	}
}

func TestNewVault_InvalidCACert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write CA file: %v", err)
	}
	base := Options{Address: "https://vault.example.com", Token: "t", SecretPath: "p"}

	for _, caFile := range []string{bad, filepath.Join(dir, "missing.pem")} {
		opts := base
		opts.TLSCACertFile = caFile
		if _, err := NewVault(opts); err == nil {
			t.Fatalf("NewVault(TLSCACertFile=%q) returned nil error", caFile)
		}
	}
}
