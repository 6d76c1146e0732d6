// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the chatkeeper server.
//
// Database settings are one input of the secrets chain: DatabaseDSN wins when
// set, otherwise DBHost/DBName/DBUser/DBPassword are used when all four are
// present, and the Vault and environment providers fill in what is missing.
type Config struct {
	EndpointAddrHTTP string
	EndpointAddrGRPC string

	DatabaseDSN string
	DBHost      string
	DBName      string
	DBUser      string
	DBPassword  string

	ConnectRetries   int
	OperationTimeout time.Duration

	SecretKey               string
	SessionValidityDuration time.Duration
	SecureCookie            bool

	UploadDir      string
	MaxUploadSize  int64
	StorageBackend string
	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	VaultAddress string
	VaultToken   string
	VaultMount   string
	VaultPath    string

	MessageListLimit int
	ImageListLimit   int
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is left empty; the app generates an ephemeral one and warns.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3000"
	c.EndpointAddrGRPC = ":50051"
	c.ConnectRetries = 5
	c.OperationTimeout = 5 * time.Second
	c.SessionValidityDuration = 24 * time.Hour
	c.UploadDir = "./uploads"
	c.MaxUploadSize = 5 << 20
	c.StorageBackend = StorageLocal
	c.S3Bucket = "uploads"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.VaultMount = "secret"
	c.VaultPath = "chatkeeper/database"
	c.MessageListLimit = 100
	c.ImageListLimit = 200
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
