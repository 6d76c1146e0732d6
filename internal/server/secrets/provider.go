// Package secrets resolves database connection settings from the sources the
// deployment offers: static configuration, a Vault KV v2 secret, and the
// process environment (optionally seeded from a .env file).
package secrets

import "context"

// DatabaseConfig is either a single connection descriptor or the four
// discrete fields a descriptor can be built from.
type DatabaseConfig struct {
	Descriptor string
	Host       string
	Database   string
	User       string
	Credential string
}

// Complete reports whether c is enough to open a connection.
func (c DatabaseConfig) Complete() bool {
	if c.Descriptor != "" {
		return true
	}
	return c.Host != "" && c.Database != "" && c.User != "" && c.Credential != ""
}

// merge fills the empty fields of c from other.
func (c DatabaseConfig) merge(other DatabaseConfig) DatabaseConfig {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Descriptor, other.Descriptor)
	fill(&c.Host, other.Host)
	fill(&c.Database, other.Database)
	fill(&c.User, other.User)
	fill(&c.Credential, other.Credential)
	return c
}

// Provider is a source of database settings. A provider that simply has no
// settings returns an empty DatabaseConfig and a nil error.
type Provider interface {
	ResolveDatabaseConfig(ctx context.Context) (DatabaseConfig, error)
}

// StaticProvider returns a fixed configuration, typically taken from the
// config file and flags.
type StaticProvider struct {
	Config DatabaseConfig
}

func (p StaticProvider) ResolveDatabaseConfig(context.Context) (DatabaseConfig, error) {
	return p.Config, nil
}
