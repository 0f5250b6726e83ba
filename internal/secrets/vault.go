// Package secrets resolves credentials that are not supplied directly in the
// environment from a HashiCorp Vault KV v2 secret.
package secrets

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

const defaultKVMount = "secret"

var ErrSecretNotFound = errors.New("secret not found")

type Options struct {
	Address       string
	Namespace     string
	Token         string
	KVMount       string
	SecretPath    string
	TLSSkipVerify bool
	// TLSCACertFile is a PEM bundle trusted in place of the system roots.
	TLSCACertFile string
}

// Vault reads fields from one KV v2 secret. The secret is fetched once and
// cached for the lifetime of the value.
type Vault struct {
	client *vaultapi.Client
	mount  string
	path   string

	loaded bool
	data   map[string]any
}

func NewVault(opts Options) (*Vault, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required")
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("vault token is required")
	}
	path := strings.Trim(strings.TrimSpace(opts.SecretPath), "/")
	if path == "" {
		return nil, errors.New("vault secret path is required")
	}
	mount := strings.Trim(strings.TrimSpace(opts.KVMount), "/")
	if mount == "" {
		mount = defaultKVMount
	}

	var caCertPEM []byte
	if caFile := strings.TrimSpace(opts.TLSCACertFile); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read vault CA certificate: %w", err)
		}
		caCertPEM = pem
	}
	transport, err := buildHTTPTransport(opts.TLSSkipVerify, caCertPEM)
	if err != nil {
		return nil, err
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	cfg.HttpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	if ns := strings.TrimSpace(opts.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	client.SetToken(token)

	return &Vault{client: client, mount: mount, path: path}, nil
}

// Lookup returns the string value of field in the configured secret.
func (v *Vault) Lookup(ctx context.Context, field string) (string, error) {
	if !v.loaded {
		secret, err := v.client.KVv2(v.mount).Get(ctx, v.path)
		if err != nil {
			if errors.Is(err, vaultapi.ErrSecretNotFound) {
				return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, v.mount, v.path)
			}
			return "", fmt.Errorf("vault read %s/%s: %w", v.mount, v.path, err)
		}
		if secret != nil {
			v.data = secret.Data
		}
		v.loaded = true
	}

	raw, ok := v.data[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q in %s/%s", ErrSecretNotFound, field, v.mount, v.path)
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: field %q in %s/%s is empty or not a string", ErrSecretNotFound, field, v.mount, v.path)
	}
	return s, nil
}

// Lookuper is satisfied by *Vault.
type Lookuper interface {
	Lookup(ctx context.Context, field string) (string, error)
}

// Resolve returns current when it is set, otherwise reads field from src.
// A nil src with an empty current is ErrSecretNotFound.
func Resolve(ctx context.Context, src Lookuper, field, current string) (string, error) {
	if strings.TrimSpace(current) != "" {
		return current, nil
	}
	if src == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, field)
	}
	return src.Lookup(ctx, field)
}

func buildHTTPTransport(skipVerify bool, caCertPEM []byte) (http.RoundTripper, error) {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return http.DefaultTransport, nil
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = skipVerify
	if len(caCertPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCertPEM) {
			return nil, errors.New("vault CA certificate contains no PEM certificates")
		}
		transport.TLSClientConfig.RootCAs = pool
	}
	return transport, nil
}
