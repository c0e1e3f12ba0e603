package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBConfig holds the SQL Server connection settings.
type DBConfig struct {
	Driver                 string
	Server                 string
	Port                   int
	Database               string
	Username               string
	Password               string
	Encrypt                bool
	TrustServerCertificate bool
	TDSVersion             string
	ConnectTimeout         time.Duration
	AutoMigrate            bool
}

type Config struct {
	Host string
	Port int

	DB DBConfig

	UploadDir string
	LogDir    string
	LogLevel  string

	Workers      int
	JobQueueSize int
	JobTimeout   time.Duration
	JobRetention time.Duration

	RedisAddr          string
	AccessTokenSecret  string
	CORSAllowedOrigins []string
	UploadUser         string
}

// SetDefaults registers every key with its default so that AutomaticEnv can
// resolve it from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bind_host", "0.0.0.0")
	v.SetDefault("port", 8000)

	v.SetDefault("db_driver", "sqlserver")
	v.SetDefault("db_server", "")
	v.SetDefault("db_port", 1433)
	v.SetDefault("db_database", "")
	v.SetDefault("db_username", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_encrypt", true)
	v.SetDefault("db_trust_server_certificate", false)
	v.SetDefault("db_tds_version", "8.0")
	v.SetDefault("db_connect_timeout", "10s")
	v.SetDefault("db_auto_migrate", false)

	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")

	v.SetDefault("workers", 4)
	v.SetDefault("job_queue_size", 64)
	v.SetDefault("job_timeout", "300s")
	v.SetDefault("job_retention", "24h")

	v.SetDefault("redis_addr", "")
	v.SetDefault("access_token_secret", "")
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("upload_user", "EquipoPruebas")

	v.AutomaticEnv()
}

func Load(v *viper.Viper) (*Config, error) {
	jobTimeout, err := parseDuration(v.GetString("job_timeout"))
	if err != nil {
		return nil, fmt.Errorf("JOB_TIMEOUT: %w", err)
	}
	jobRetention, err := parseDuration(v.GetString("job_retention"))
	if err != nil {
		return nil, fmt.Errorf("JOB_RETENTION: %w", err)
	}
	connectTimeout, err := parseDuration(v.GetString("db_connect_timeout"))
	if err != nil {
		return nil, fmt.Errorf("DB_CONNECT_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Host: v.GetString("bind_host"),
		Port: v.GetInt("port"),
		DB: DBConfig{
			Driver:                 strings.TrimSpace(v.GetString("db_driver")),
			Server:                 v.GetString("db_server"),
			Port:                   v.GetInt("db_port"),
			Database:               v.GetString("db_database"),
			Username:               v.GetString("db_username"),
			Password:               v.GetString("db_password"),
			Encrypt:                v.GetBool("db_encrypt"),
			TrustServerCertificate: v.GetBool("db_trust_server_certificate"),
			TDSVersion:             v.GetString("db_tds_version"),
			ConnectTimeout:         connectTimeout,
			AutoMigrate:            v.GetBool("db_auto_migrate"),
		},
		UploadDir:         v.GetString("upload_dir"),
		LogDir:            v.GetString("log_dir"),
		LogLevel:          v.GetString("log_level"),
		Workers:           v.GetInt("workers"),
		JobQueueSize:      v.GetInt("job_queue_size"),
		JobTimeout:        jobTimeout,
		JobRetention:      jobRetention,
		RedisAddr:         v.GetString("redis_addr"),
		AccessTokenSecret: v.GetString("access_token_secret"),
		UploadUser:        v.GetString("upload_user"),
	}

	for _, origin := range strings.Split(v.GetString("cors_allowed_origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.DB.Port <= 0 {
		cfg.DB.Port = 1433
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.JobQueueSize <= 0 {
		return nil, fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", cfg.JobQueueSize)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports the connection settings that are missing.
func (c DBConfig) Validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("DB_SERVER environment variable is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE environment variable is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("DB_USERNAME environment variable is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}
	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("90s", "5m") and bare integers, which
// are read as seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
