package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/vault/api"
)

// Keys expected inside the Vault secret.
const (
	vaultKeyConnectionString = "connection_string"
	vaultKeyServer           = "server"
	vaultKeyDatabase         = "database"
	vaultKeyUser             = "user"
	vaultKeyPassword         = "password"
)

// kvReader is the part of *api.KVv2 the provider needs.
type kvReader interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
}

// VaultProvider reads the database settings from a KV v2 secret.
type VaultProvider struct {
	kv   kvReader
	path string
}

// NewVaultProvider builds a client for address authenticated with token and
// reads secretPath under the KV v2 mount.
func NewVaultProvider(address, token, mount, secretPath string) (*VaultProvider, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(token)
	return &VaultProvider{kv: client.KVv2(mount), path: secretPath}, nil
}

func (p *VaultProvider) ResolveDatabaseConfig(ctx context.Context) (DatabaseConfig, error) {
	secret, err := p.kv.Get(ctx, p.path)
	if err != nil {
		if isNotFound(err) {
			return DatabaseConfig{}, nil
		}
		if isPermissionDenied(err) {
			return DatabaseConfig{}, fmt.Errorf("vault: permission denied reading %q: %w", p.path, err)
		}
		return DatabaseConfig{}, fmt.Errorf("vault: reading %q: %w", p.path, err)
	}
	if secret == nil || secret.Data == nil {
		return DatabaseConfig{}, nil
	}

	str := func(key string) string {
		if v, ok := secret.Data[key].(string); ok {
			return v
		}
		return ""
	}
	return DatabaseConfig{
		Descriptor: str(vaultKeyConnectionString),
		Host:       str(vaultKeyServer),
		Database:   str(vaultKeyDatabase),
		User:       str(vaultKeyUser),
		Credential: str(vaultKeyPassword),
	}, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, api.ErrSecretNotFound) {
		return true
	}
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func isPermissionDenied(err error) bool {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
