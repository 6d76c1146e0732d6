package pool

import (
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/secrets"
)

// BuildDSN turns resolved database settings into a connection string.
// A descriptor is used verbatim; otherwise the discrete fields are assembled
// into a postgres URL. Host may carry a ":port" suffix.
func BuildDSN(cfg secrets.DatabaseConfig) (string, error) {
	if cfg.Descriptor != "" {
		return cfg.Descriptor, nil
	}
	if !cfg.Complete() {
		return "", fmt.Errorf("%w: need a connection string or host, database, user and password", common.ErrConfiguration)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Credential),
		Host:   cfg.Host,
		Path:   "/" + cfg.Database,
	}
	return u.String(), nil
}
