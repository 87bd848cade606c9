// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted in Storage.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverBlob     = "blob"
)

// Blob drivers accepted in Blob.Driver.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Metrics backends accepted in Config.Metrics.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Delivery quantity policies accepted in Delivery.QtyPolicy.
const (
	QtyPolicyLenient = "lenient"
	QtyPolicyStrict  = "strict"
)

// Config is the resolved runtime configuration.
type Config struct {
	Storage Storage `mapstructure:"storage"`
	Log     Log     `mapstructure:"log"`
	Metrics string  `mapstructure:"metrics"`
	// MetricsTextfile, when set, receives the metrics of the run on exit.
	MetricsTextfile string   `mapstructure:"metrics_textfile"`
	Trace           bool     `mapstructure:"trace"`
	Delivery        Delivery `mapstructure:"delivery"`
	Export          Export   `mapstructure:"export"`
}

// Storage selects the persistence backend and the key the collection is
// stored under.
type Storage struct {
	Driver   string   `mapstructure:"driver"`
	Key      string   `mapstructure:"key"`
	SQLite   SQLite   `mapstructure:"sqlite"`
	Postgres Postgres `mapstructure:"postgres"`
	Redis    Redis    `mapstructure:"redis"`
	Blob     Blob     `mapstructure:"blob"`
}

// SQLite configures the sqlite bridge.
type SQLite struct {
	Path string `mapstructure:"path"`
}

// Postgres configures the postgres bridge.
type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

// Redis configures the redis bridge.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Blob selects the object store used by the blob bridge and by published
// exports.
type Blob struct {
	Driver string `mapstructure:"driver"`
	FSRoot string `mapstructure:"fs_root"`
	S3     S3     `mapstructure:"s3"`
}

// S3 configures the S3 blob driver. Endpoint and PathStyle target
// S3-compatible servers.
type S3 struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// Log configures the zap logger. Format is json or console.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Export holds the default output directory for file exports.
type Export struct {
	Dir string `mapstructure:"dir"`
}

// Delivery configures delivery entry. QtyPolicy is lenient or strict.
type Delivery struct {
	QtyPolicy string `mapstructure:"qty_policy"`
}

var envBindings = map[string]string{
	"storage.driver":             "MATREQ_STORAGE_DRIVER",
	"storage.key":                "MATREQ_STORAGE_KEY",
	"storage.sqlite.path":        "MATREQ_SQLITE_PATH",
	"storage.postgres.dsn":       "MATREQ_POSTGRES_DSN",
	"storage.redis.addr":         "MATREQ_REDIS_ADDR",
	"storage.redis.password":     "MATREQ_REDIS_PASSWORD",
	"storage.redis.db":           "MATREQ_REDIS_DB",
	"storage.blob.driver":        "MATREQ_BLOB_DRIVER",
	"storage.blob.fs_root":       "MATREQ_BLOB_FS_ROOT",
	"storage.blob.s3.bucket":     "MATREQ_BLOB_S3_BUCKET",
	"storage.blob.s3.region":     "MATREQ_BLOB_S3_REGION",
	"storage.blob.s3.endpoint":   "MATREQ_BLOB_S3_ENDPOINT",
	"storage.blob.s3.path_style": "MATREQ_BLOB_S3_PATH_STYLE",
	"log.level":                  "MATREQ_LOG_LEVEL",
	"log.format":                 "MATREQ_LOG_FORMAT",
	"metrics":                    "MATREQ_METRICS",
	"metrics_textfile":           "MATREQ_METRICS_TEXTFILE",
	"trace":                      "MATREQ_TRACE",
	"delivery.qty_policy":        "MATREQ_DELIVERY_QTY_POLICY",
	"export.dir":                 "MATREQ_EXPORT_DIR",
}

// Load reads the given .env files (".env" when none are named; a missing
// default file is ignored) and then resolves the MATREQ_ environment.
// Variables already present in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MATREQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.key", "materialRequests")
	v.SetDefault("storage.sqlite.path", "materialtracker.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.blob.driver", "fs")
	v.SetDefault("storage.blob.fs_root", "./blobdata")
	v.SetDefault("storage.blob.s3.bucket", "")
	v.SetDefault("storage.blob.s3.region", "us-east-1")
	v.SetDefault("storage.blob.s3.endpoint", "")
	v.SetDefault("storage.blob.s3.path_style", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics", MetricsNone)
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("trace", false)
	v.SetDefault("delivery.qty_policy", QtyPolicyLenient)
	v.SetDefault("export.dir", ".")
}

// FromViper decodes and validates a populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Metrics = strings.ToLower(strings.TrimSpace(cfg.Metrics))
	cfg.Storage.Blob.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Blob.Driver))
	cfg.Delivery.QtyPolicy = strings.ToLower(strings.TrimSpace(cfg.Delivery.QtyPolicy))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown driver and backend names.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis, DriverBlob:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.Blob.Driver {
	case "", BlobFilesystem, BlobS3, BlobMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Storage.Blob.Driver)
	}
	switch c.Metrics {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		return fmt.Errorf("unknown metrics backend %q", c.Metrics)
	}
	if c.MetricsTextfile != "" && (c.Metrics == "" || c.Metrics == MetricsNone) {
		return fmt.Errorf("metrics textfile needs a metrics backend (expvar or prometheus)")
	}
	switch c.Delivery.QtyPolicy {
	case "", QtyPolicyLenient, QtyPolicyStrict:
	default:
		return fmt.Errorf("unknown delivery quantity policy %q", c.Delivery.QtyPolicy)
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return fmt.Errorf("storage key must not be blank")
	}
	return nil
}
