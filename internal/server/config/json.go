package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/chatkeeper/internal/flagx"
	"github.com/dmitrijs2005/chatkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer-free
// zero values mean "not set" and leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC        string         `json:"endpoint_addr_grpc"`
	DatabaseDSN             string         `json:"database_dsn"`
	DBHost                  string         `json:"db_host"`
	DBName                  string         `json:"db_name"`
	DBUser                  string         `json:"db_user"`
	DBPassword              string         `json:"db_password"`
	ConnectRetries          int            `json:"connect_retries"`
	OperationTimeout        timex.Duration `json:"operation_timeout"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	SecureCookie            bool           `json:"secure_cookie"`
	UploadDir               string         `json:"upload_dir"`
	MaxUploadSize           int64          `json:"max_upload_size"`
	StorageBackend          string         `json:"storage_backend"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	VaultAddress            string         `json:"vault_address"`
	VaultToken              string         `json:"vault_token"`
	VaultMount              string         `json:"vault_mount"`
	VaultPath               string         `json:"vault_path"`
	MessageListLimit        int            `json:"message_list_limit"`
	ImageListLimit          int            `json:"image_list_limit"`
}

// parseJson overlays values from the file named by -c / -config onto config.
// Without the flag nothing is loaded. An unreadable or malformed file panics,
// since the process cannot start with a configuration it did not understand.
func parseJson(config *Config) {
	path := flagx.ConfigFilePath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.DBHost, c.DBHost)
	setString(&config.DBName, c.DBName)
	setString(&config.DBUser, c.DBUser)
	setString(&config.DBPassword, c.DBPassword)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.VaultAddress, c.VaultAddress)
	setString(&config.VaultToken, c.VaultToken)
	setString(&config.VaultMount, c.VaultMount)
	setString(&config.VaultPath, c.VaultPath)

	if c.ConnectRetries > 0 {
		config.ConnectRetries = c.ConnectRetries
	}
	if c.OperationTimeout.Duration > 0 {
		config.OperationTimeout = c.OperationTimeout.Duration
	}
	if c.SessionValidityDuration.Duration > 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.SecureCookie {
		config.SecureCookie = true
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.MessageListLimit > 0 {
		config.MessageListLimit = c.MessageListLimit
	}
	if c.ImageListLimit > 0 {
		config.ImageListLimit = c.ImageListLimit
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
