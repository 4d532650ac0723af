package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the push service.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`
	Log struct {
		Mode string `mapstructure:"mode"`
	} `mapstructure:"log"`
	Database struct {
		Driver      string `mapstructure:"driver"`
		DSN         string `mapstructure:"dsn"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"database"`
	Storage struct {
		LogPath string `mapstructure:"log_path"`
	} `mapstructure:"storage"`
	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		TokenTTL   time.Duration `mapstructure:"token_ttl"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	Notify struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"notify"`
	FCM struct {
		ProjectID         string        `mapstructure:"project_id"`
		CredentialsFile   string        `mapstructure:"credentials_file"`
		CredentialsBase64 string        `mapstructure:"credentials_base64"`
		Endpoint          string        `mapstructure:"endpoint"`
		SendTimeout       time.Duration `mapstructure:"send_timeout"`
	} `mapstructure:"fcm"`
	Dispatch struct {
		MaxConcurrency int    `mapstructure:"max_concurrency"`
		PurgeSchedule  string `mapstructure:"purge_schedule"`
	} `mapstructure:"dispatch"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
}

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("maintenance_push")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, env-only deployments are common
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Dispatch.MaxConcurrency <= 0 {
		return fmt.Errorf("dispatch.max_concurrency must be positive")
	}
	if c.FCM.SendTimeout <= 0 {
		return fmt.Errorf("fcm.send_timeout must be positive")
	}
	if spec := strings.TrimSpace(c.Dispatch.PurgeSchedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("dispatch.purge_schedule: %w", err)
		}
	}
	return nil
}

// SetConfigFile with an explicit path surfaces a missing file as a plain
// os error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("log.mode", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/maintenance.db")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.log_path", "./data/dispatch_log.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("notify.api_key", "")

	v.SetDefault("fcm.project_id", "")
	v.SetDefault("fcm.credentials_file", "")
	v.SetDefault("fcm.credentials_base64", "")
	v.SetDefault("fcm.endpoint", "https://fcm.googleapis.com")
	v.SetDefault("fcm.send_timeout", "10s")

	v.SetDefault("dispatch.max_concurrency", 16)
	// empty disables the scheduled sweep
	v.SetDefault("dispatch.purge_schedule", "0 3 * * *")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
