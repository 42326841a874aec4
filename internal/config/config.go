// Package config loads the application configuration from command-line
// flags, environment variables and built-in defaults, in that order of
// precedence, and validates the result.
package config

import (
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings of the service.
type Config struct {
	// RunAddr is the address and port the HTTP server listens on.
	RunAddr string `env:"SERVER_ADDRESS" validate:"hostname_port"`

	// BaseURL is the public base URL clients prefix to the relative
	// image paths returned by the API.
	BaseURL string `env:"BASE_URL" validate:"url"`

	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// DBFileName selects the file-backed document store when set.
	DBFileName string `env:"FILE_STORAGE_PATH" validate:"filepath"`

	// DatabaseDSN selects the PostgreSQL backend when set.
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`

	// JWTSigningSecretKey signs bearer tokens. The default is insecure
	// and only suitable for local runs.
	JWTSigningSecretKey string `env:"JWT_SECRET"`

	// TokenTTL is the bearer token lifetime. Expiry is the only way a
	// token is ever invalidated.
	TokenTTL time.Duration `env:"TOKEN_TTL"`

	// UploadsDir is the content directory for uploaded images, served
	// back under the /uploads/ path prefix.
	UploadsDir string `env:"UPLOADS_DIR" validate:"filepath"`

	// MaxUploadSize caps the in-memory part of multipart parsing, in bytes.
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE"`

	// TrustedSubnet is a CIDR; only clients inside it may read the
	// internal stats route. Empty disables the route.
	TrustedSubnet string `env:"TRUSTED_SUBNET"`

	RemoverChannelCapacity int           `env:"REMOVER_CHANNEL_CAPACITY"`
	RemoverFlushInterval   time.Duration `env:"REMOVER_FLUSH_INTERVAL"`
}

var defaultConfig = Config{
	RunAddr:                ":8080",
	BaseURL:                "http://localhost:8080",
	LogLevel:               "info",
	DBFileName:             "",
	DatabaseDSN:            "",
	DBConnectionTimeout:    10 * time.Second,
	MigrationsDir:          "migrations",
	JWTSigningSecretKey:    "default_secret",
	TokenTTL:               7 * 24 * time.Hour,
	UploadsDir:             "uploads",
	MaxUploadSize:          10 << 20,
	TrustedSubnet:          "",
	RemoverChannelCapacity: 64,
	RemoverFlushInterval:   5 * time.Second,
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption customizes configuration loading.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command-line flag parsing. Tests use it
// so the `go test` flags do not leak into the config.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func applyEnv(values *Config) error {
	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return err
	}

	if valuesFromEnv.RunAddr != "" {
		values.RunAddr = valuesFromEnv.RunAddr
	}
	if valuesFromEnv.BaseURL != "" {
		values.BaseURL = valuesFromEnv.BaseURL
	}
	if valuesFromEnv.LogLevel != "" {
		values.LogLevel = valuesFromEnv.LogLevel
	}
	if valuesFromEnv.DBFileName != "" {
		values.DBFileName = valuesFromEnv.DBFileName
	}
	if valuesFromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}
	if valuesFromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}
	if valuesFromEnv.MigrationsDir != "" {
		values.MigrationsDir = valuesFromEnv.MigrationsDir
	}
	if valuesFromEnv.JWTSigningSecretKey != "" {
		values.JWTSigningSecretKey = valuesFromEnv.JWTSigningSecretKey
	}
	if valuesFromEnv.TokenTTL != 0 {
		values.TokenTTL = valuesFromEnv.TokenTTL
	}
	if valuesFromEnv.UploadsDir != "" {
		values.UploadsDir = valuesFromEnv.UploadsDir
	}
	if valuesFromEnv.MaxUploadSize != 0 {
		values.MaxUploadSize = valuesFromEnv.MaxUploadSize
	}
	if valuesFromEnv.TrustedSubnet != "" {
		values.TrustedSubnet = valuesFromEnv.TrustedSubnet
	}
	if valuesFromEnv.RemoverChannelCapacity != 0 {
		values.RemoverChannelCapacity = valuesFromEnv.RemoverChannelCapacity
	}
	if valuesFromEnv.RemoverFlushInterval != 0 {
		values.RemoverFlushInterval = valuesFromEnv.RemoverFlushInterval
	}

	return nil
}

// New loads, merges and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if !options.disableFlagsParsing {
		flag.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flag.StringVar(&values.BaseURL, "b", values.BaseURL, "public base URL for uploaded image links")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flag.StringVar(&values.JWTSigningSecretKey, "s", values.JWTSigningSecretKey, "secret key for signing bearer tokens")
		flag.StringVar(&values.UploadsDir, "u", values.UploadsDir, "directory for uploaded images")
		flag.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet in CIDR notation")
		flag.Parse()
	}

	if err := applyEnv(values); err != nil {
		return nil, err
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
