package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Backend  BackendConfig  `json:"backend"`
	Cache    CacheConfig    `json:"cache"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Portal   PortalConfig   `json:"portal"`
	AWS      AWSConfig      `json:"aws"`
	Jobs     JobsConfig     `json:"jobs"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database pool configuration. The connection target
// itself comes from BackendConfig.
type DatabaseConfig struct {
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// BackendConfig holds the two connection parameters of the persistence backend.
// When either is empty the portal runs against the in-memory fixture dataset.
type BackendConfig struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// CacheConfig
type CacheConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// PortalConfig carries behavior switches of the portal core.
type PortalConfig struct {
	StrictStatusTransitions bool          `json:"strict_status_transitions"`
	InvitationTTL           time.Duration `json:"invitation_ttl"`
	PublicURL               string        `json:"public_url"` // base of links in outgoing mail
}

// AWSConfig configures invitation mail (SES) and export archiving (S3).
// Both integrations stay disabled while their fields are empty.
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SenderEmail     string `json:"sender_email"`
	ExportBucket    string `json:"export_bucket"`
}

// JobsConfig holds cron expressions for the background sweeps.
type JobsConfig struct {
	DelaySweep      string `json:"delay_sweep"`
	InvitationSweep string `json:"invitation_sweep"`
	LedgerArchive   string `json:"ledger_archive"`
	MetricsAddr     string `json:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Cache: CacheConfig{
			TTL:             30 * time.Second,
			CleanupInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Portal: PortalConfig{
			InvitationTTL: 7 * 24 * time.Hour,
			PublicURL:     "http://localhost:3000",
		},
		Jobs: JobsConfig{
			DelaySweep:      "0 0 6 * * *",
			InvitationSweep: "0 */15 * * * *",
			LedgerArchive:   "0 30 2 * * *",
			MetricsAddr:     ":9091",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if url := os.Getenv("BACKEND_URL"); url != "" {
		config.Backend.URL = url
	}
	if key := os.Getenv("BACKEND_KEY"); key != "" {
		config.Backend.Key = key
	}
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Cache.TTL = d
		}
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if strict := os.Getenv("PORTAL_STRICT_STATUS_TRANSITIONS"); strict != "" {
		config.Portal.StrictStatusTransitions = strings.EqualFold(strict, "true")
	}
	if url := os.Getenv("PORTAL_PUBLIC_URL"); url != "" {
		config.Portal.PublicURL = url
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		config.AWS.AccessKeyID = id
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		config.AWS.SecretAccessKey = secret
	}
	if sender := os.Getenv("INVITATION_SENDER_EMAIL"); sender != "" {
		config.AWS.SenderEmail = sender
	}
	if bucket := os.Getenv("EXPORT_BUCKET"); bucket != "" {
		config.AWS.ExportBucket = bucket
	}
}

// FixtureMode reports whether the portal must serve the in-memory dataset.
func (c *BackendConfig) FixtureMode() bool {
	return strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.Key) == ""
}

// GetDatabaseURL returns the postgres connection string. The key is the
// password of the role named in the URL.
func (c *BackendConfig) GetDatabaseURL() string {
	if c.Key == "" || strings.Contains(c.URL, "password=") {
		return c.URL
	}
	sep := "?"
	if strings.Contains(c.URL, "?") {
		sep = "&"
	}
	return c.URL + sep + "password=" + c.Key
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MailEnabled reports whether invitation mail can be sent.
func (c *AWSConfig) MailEnabled() bool {
	return c.Region != "" && c.SenderEmail != ""
}

// ArchiveEnabled reports whether ledgers can be archived to S3.
func (c *AWSConfig) ArchiveEnabled() bool {
	return c.Region != "" && c.ExportBucket != ""
}

// LoadAWS resolves the SDK configuration. Static keys win over the default
// credential chain when both are set.
func (c *AWSConfig) LoadAWS(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger: zap's development preset when
// Development is set, the production JSON preset otherwise, at Level.
func (c *LoggingConfig) NewLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.Set(c.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
