package secrets

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names, shared with the deployment scripts.
const (
	EnvConnectionString = "DB_CONNECTION_STRING"
	EnvServer           = "DB_SERVER"
	EnvName             = "DB_NAME"
	EnvUser             = "DB_USER"
	EnvPassword         = "DB_PASSWORD"
)

// EnvProvider reads the database settings from the process environment.
// When DotEnvFiles is non-empty those files are loaded first; variables that
// are already set are never overridden and missing files are ignored.
type EnvProvider struct {
	DotEnvFiles []string
	lookup      func(string) string
}

func NewEnvProvider(dotEnvFiles ...string) *EnvProvider {
	return &EnvProvider{DotEnvFiles: dotEnvFiles, lookup: os.Getenv}
}

func (p *EnvProvider) ResolveDatabaseConfig(context.Context) (DatabaseConfig, error) {
	for _, f := range p.DotEnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return DatabaseConfig{}, err
		}
	}

	lookup := p.lookup
	if lookup == nil {
		lookup = os.Getenv
	}
	return DatabaseConfig{
		Descriptor: lookup(EnvConnectionString),
		Host:       lookup(EnvServer),
		Database:   lookup(EnvName),
		User:       lookup(EnvUser),
		Credential: lookup(EnvPassword),
	}, nil
}
