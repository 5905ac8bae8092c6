// Package config loads service configuration from defaults, an optional
// config.yaml, and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/greengig/greengig/internal/concert"
	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/travel"
	"github.com/greengig/greengig/internal/user"
)

// Backend names for store.driver and blob.driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMinio    = "minio"
)

// Config is the full service configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	DB         DBConfig         `mapstructure:"db"`
	OTel       OTelConfig       `mapstructure:"otel"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Emission   EmissionConfig   `mapstructure:"emission"`
	Quality    QualityConfig    `mapstructure:"quality"`
	Blob       BlobConfig       `mapstructure:"blob"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Rewards    []reward.Rule    `mapstructure:"rewards"`
	Seed       SeedConfig       `mapstructure:"seed"`
}

// AppConfig configures the HTTP listener.
type AppConfig struct {
	Env        string `mapstructure:"env"`
	Port       int    `mapstructure:"port"`
	RequireTLS bool   `mapstructure:"require_tls"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DBConfig configures PostgreSQL.
type DBConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectRetries  uint64        `mapstructure:"connect_retries"`
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// AuthConfig configures reviewer token validation.
type AuthConfig struct {
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	Issuer        string `mapstructure:"issuer"`
}

// ApprovalConfig configures the auto-approval policy.
type ApprovalConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// ClassifierConfig configures the hosted inference models, tried in order.
type ClassifierConfig struct {
	BaseURL         string              `mapstructure:"base_url"`
	Token           string              `mapstructure:"token"`
	Models          []string            `mapstructure:"models"`
	Timeout         time.Duration       `mapstructure:"timeout"`
	AcceptThreshold float64             `mapstructure:"accept_threshold"`
	LowConfidence   float64             `mapstructure:"low_confidence_threshold"`
	Reliable        float64             `mapstructure:"reliable_threshold"`
	Keywords        map[string][]string `mapstructure:"keywords"`
}

// EmissionConfig overrides emission factors (kg CO2 per km) by mode.
type EmissionConfig struct {
	Factors map[string]float64 `mapstructure:"factors"`
}

// QualityConfig configures the image quality gate.
type QualityConfig struct {
	MinWidth  int   `mapstructure:"min_width"`
	MinHeight int   `mapstructure:"min_height"`
	MaxBytes  int64 `mapstructure:"max_bytes"`
}

// BlobConfig selects and configures proof image storage.
type BlobConfig struct {
	Driver string      `mapstructure:"driver"`
	Minio  MinioConfig `mapstructure:"minio"`
}

// MinioConfig configures the MinIO backend.
type MinioConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Secure       bool   `mapstructure:"secure"`
	CreateBucket bool   `mapstructure:"create_bucket"`
}

// PubSubConfig configures events and worker jobs. An empty ProjectID
// disables publishing.
type PubSubConfig struct {
	ProjectID        string `mapstructure:"project_id"`
	EventsTopic      string `mapstructure:"events_topic"`
	JobsTopic        string `mapstructure:"jobs_topic"`
	JobsSubscription string `mapstructure:"jobs_subscription"`
}

// RateLimitConfig bounds request rates per client.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	UploadsPerMinute  int `mapstructure:"uploads_per_minute"`
}

// SeedConfig lists users and concerts loaded at startup.
type SeedConfig struct {
	Users    []SeedUser    `mapstructure:"users"`
	Concerts []SeedConcert `mapstructure:"concerts"`
}

// SeedUser is a user created at startup if missing.
type SeedUser struct {
	ID            string `mapstructure:"id"`
	Name          string `mapstructure:"name"`
	Email         string `mapstructure:"email"`
	PreferredMode string `mapstructure:"preferred_mode"`
}

// SeedConcert is a concert upserted at startup.
type SeedConcert struct {
	ID       string   `mapstructure:"id"`
	Name     string   `mapstructure:"name"`
	Venue    string   `mapstructure:"venue"`
	Location string   `mapstructure:"location"`
	StartsAt string   `mapstructure:"starts_at"`
	Lat      *float64 `mapstructure:"lat"`
	Lng      *float64 `mapstructure:"lng"`
}

// envBindings keeps the established variable names working.
var envBindings = map[string]string{
	"app.env":               "APP_ENV",
	"app.port":              "APP_PORT",
	"app.require_tls":       "REQUIRE_TLS",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"store.driver":          "STORE_DRIVER",
	"db.host":               "DB_HOST",
	"db.port":               "DB_PORT",
	"db.user":               "DB_USER",
	"db.password":           "DB_PASSWORD",
	"db.name":               "DB_NAME",
	"db.ssl_mode":           "DB_SSL_MODE",
	"db.max_open_conns":     "DB_MAX_OPEN_CONNS",
	"db.max_idle_conns":     "DB_MAX_IDLE_CONNS",
	"db.conn_max_lifetime":  "DB_CONN_MAX_LIFETIME",
	"otel.enabled":          "OTEL_ENABLED",
	"otel.endpoint":         "OTEL_EXPORTER_OTLP_ENDPOINT",
	"auth.jwt_signing_key":  "JWT_SIGNING_KEY",
	"approval.threshold":    "APPROVAL_THRESHOLD",
	"classifier.token":      "HUGGINGFACE_API_KEY",
	"blob.driver":           "BLOB_DRIVER",
	"blob.minio.endpoint":   "MINIO_ENDPOINT",
	"blob.minio.access_key": "MINIO_ACCESS_KEY",
	"blob.minio.secret_key": "MINIO_SECRET_KEY",
	"blob.minio.bucket":     "MINIO_BUCKET",
	"pubsub.project_id":     "PUBSUB_PROJECT_ID",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", DriverMemory)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "greengig")
	v.SetDefault("db.password", "localdev")
	v.SetDefault("db.name", "greengig")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "5m")
	v.SetDefault("db.connect_retries", 5)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.sample_ratio", 1.0)

	v.SetDefault("auth.issuer", "greengig")

	v.SetDefault("approval.threshold", 0.6)

	v.SetDefault("classifier.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("classifier.models", []string{"microsoft/resnet-50", "facebook/detr-resnet-50"})
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.accept_threshold", 0.2)
	v.SetDefault("classifier.low_confidence_threshold", 0.4)
	v.SetDefault("classifier.reliable_threshold", 0.5)

	v.SetDefault("quality.min_width", 200)
	v.SetDefault("quality.min_height", 200)
	v.SetDefault("quality.max_bytes", 10<<20)

	v.SetDefault("blob.driver", DriverMemory)
	v.SetDefault("blob.minio.bucket", "travel-proofs")
	v.SetDefault("blob.minio.create_bucket", true)

	v.SetDefault("pubsub.events_topic", "greengig-events")
	v.SetDefault("pubsub.jobs_topic", "greengig-jobs")
	v.SetDefault("pubsub.jobs_subscription", "greengig-worker")

	v.SetDefault("ratelimit.requests_per_minute", 100)
	v.SetDefault("ratelimit.uploads_per_minute", 10)
}

// Load reads configuration. paths are searched for config.yaml; with none
// given the working directory is used. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("GREENGIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "GREENGIG_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if len(cfg.Rewards) == 0 {
		cfg.Rewards = reward.DefaultRules()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be %s or %s", c.Store.Driver, DriverMemory, DriverPostgres))
	}
	switch c.Blob.Driver {
	case DriverMemory, DriverMinio:
	default:
		errs = append(errs, fmt.Errorf("blob.driver %q must be %s or %s", c.Blob.Driver, DriverMemory, DriverMinio))
	}
	if c.Approval.Threshold <= 0 || c.Approval.Threshold > 1 {
		errs = append(errs, fmt.Errorf("approval.threshold %v must be in (0, 1]", c.Approval.Threshold))
	}
	if _, err := c.EmissionOverrides(); err != nil {
		errs = append(errs, err)
	}
	if err := reward.ValidateRules(c.Rewards); err != nil {
		errs = append(errs, err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// DatabaseConfig converts the db section.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:            c.DB.Host,
		Port:            c.DB.Port,
		User:            c.DB.User,
		Password:        c.DB.Password,
		Database:        c.DB.Name,
		SSLMode:         c.DB.SSLMode,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
		ConnectRetries:  c.DB.ConnectRetries,
	}
}

// EmissionOverrides parses emission.factors into typed modes.
func (c *Config) EmissionOverrides() (map[travel.Mode]float64, error) {
	out := make(map[travel.Mode]float64, len(c.Emission.Factors))
	for name, factor := range c.Emission.Factors {
		mode, err := travel.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("emission.factors: %w", err)
		}
		out[mode] = factor
	}
	return out, nil
}

// NewLogger builds the service logger. Format "console" writes human-readable
// output; anything else writes JSON.
func NewLogger(cfg LogConfig, service, version string) zerolog.Logger {
	return newLogger(cfg, os.Stdout).With().
		Str("service", service).
		Str("version", version).
		Logger()
}

func newLogger(cfg LogConfig, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ConcertList converts seed.concerts. StartsAt is RFC 3339 when set.
func (s SeedConfig) ConcertList() ([]*concert.Concert, error) {
	out := make([]*concert.Concert, 0, len(s.Concerts))
	for _, sc := range s.Concerts {
		if sc.ID == "" {
			return nil, errors.New("seed.concerts: id is required")
		}
		c := &concert.Concert{ID: sc.ID, Name: sc.Name, Venue: sc.Venue, Location: sc.Location}
		if sc.StartsAt != "" {
			t, err := time.Parse(time.RFC3339, sc.StartsAt)
			if err != nil {
				return nil, fmt.Errorf("seed.concerts %s: starts_at: %w", sc.ID, err)
			}
			c.StartsAt = &t
		}
		if sc.Lat != nil && sc.Lng != nil {
			p := travel.GeoPoint{Lat: *sc.Lat, Lng: *sc.Lng}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("seed.concerts %s: %w", sc.ID, err)
			}
			c.Coordinates = &p
		}
		out = append(out, c)
	}
	return out, nil
}

// UserList converts seed.users.
func (s SeedConfig) UserList(now time.Time) ([]*user.User, error) {
	out := make([]*user.User, 0, len(s.Users))
	for _, su := range s.Users {
		if su.ID == "" {
			return nil, errors.New("seed.users: id is required")
		}
		mode := travel.ModeUnknown
		if su.PreferredMode != "" {
			m, err := travel.ParseMode(su.PreferredMode)
			if err != nil {
				return nil, fmt.Errorf("seed.users %s: %w", su.ID, err)
			}
			mode = m
		}
		out = append(out, &user.User{
			ID:            su.ID,
			Name:          su.Name,
			Email:         su.Email,
			PreferredMode: mode,
			Badges:        []string{},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return out, nil
}
