package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/flagx"
	"github.com/ajeevsan/fileUpload-backend/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "48h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	EncryptionSalt          string         `json:"encryption_salt"`
	AuthenticatedEncryption bool           `json:"authenticated_encryption"`
	ExpiryWindow            timex.Duration `json:"expiry_window"`
	SweepInterval           timex.Duration `json:"sweep_interval"`
	DownloadTokenValidity   timex.Duration `json:"download_token_validity"`
	MaxUploadSize           int64          `json:"max_upload_size"`
	S3AccessKey             string         `json:"s3_access_key"`
	S3SecretKey             string         `json:"s3_secret_key"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. Zero-valued fields in the file
// leave the corresponding Config fields untouched, so the file only needs
// to mention what it overrides. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.EncryptionSalt != "" {
		config.EncryptionSalt = c.EncryptionSalt
	}
	if c.AuthenticatedEncryption {
		config.AuthenticatedEncryption = true
	}
	if c.ExpiryWindow != 0 {
		config.ExpiryWindow = time.Duration(c.ExpiryWindow)
	}
	if c.SweepInterval != 0 {
		config.SweepInterval = time.Duration(c.SweepInterval)
	}
	if c.DownloadTokenValidity != 0 {
		config.DownloadTokenValidity = time.Duration(c.DownloadTokenValidity)
	}
	if c.MaxUploadSize != 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
