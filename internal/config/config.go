package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/schema"
)

const envPrefix = "FLEETDOCS"

type Config struct {
	HTTP struct {
		Addr        string   `mapstructure:"addr"`
		CORSOrigins []string `mapstructure:"cors_origins"`
		MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	} `mapstructure:"http"`

	Auth struct {
		AccessPassword string        `mapstructure:"access_password"`
		JWTSecret      string        `mapstructure:"jwt_secret"`
		TokenTTL       time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	DB struct {
		Enabled bool   `mapstructure:"enabled"`
		DSN     string `mapstructure:"dsn"`
	} `mapstructure:"db"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Reconcile struct {
		SchemaMode      string        `mapstructure:"schema_mode"`
		DuplicatePolicy string        `mapstructure:"duplicate_policy"`
		Timezone        string        `mapstructure:"timezone"`
		Thresholds      notify.Config `mapstructure:",squash"`
	} `mapstructure:"reconcile"`
}

// AuthEnabled reports whether the password gate protects the API.
func (c *Config) AuthEnabled() bool {
	return c.Auth.AccessPassword != ""
}

func (c *Config) SchemaMode() schema.Mode {
	return schema.ParseMode(c.Reconcile.SchemaMode)
}

func (c *Config) DuplicatePolicy() reconcile.DuplicatePolicy {
	return reconcile.ParsePolicy(c.Reconcile.DuplicatePolicy)
}

func (c *Config) Notify() notify.Config {
	return c.Reconcile.Thresholds
}

// Location resolves the timezone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reconcile.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetDefaults registers every key so env vars bind even without a file.
func SetDefaults(v *viper.Viper) {
	d := notify.DefaultConfig()
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.max_upload_mb", 20)
	v.SetDefault("auth.access_password", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.dsn", "host=localhost user=postgres password=postgres dbname=fleetdocs port=5432 sslmode=disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reconcile.schema_mode", string(schema.ModeFuzzy))
	v.SetDefault("reconcile.duplicate_policy", string(reconcile.PolicyFirstMatch))
	v.SetDefault("reconcile.timezone", "Europe/Madrid")
	v.SetDefault("reconcile.urgent_window_days", d.UrgentWindowDays)
	v.SetDefault("reconcile.report_window_days", d.ReportWindowDays)
	v.SetDefault("reconcile.default_country_code", d.DefaultCountryCode)
	v.SetDefault("reconcile.messaging_url", d.MessagingURL)
	v.SetDefault("reconcile.include_unknown", d.IncludeUnknown)
}

// Load reads .env files, an optional YAML file and FLEETDOCS_* environment
// variables, in increasing order of precedence. Flags bound to v by the
// caller win over all of them.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fleetdocs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Reconcile.Thresholds.UrgentWindowDays < 0 || c.Reconcile.Thresholds.ReportWindowDays < 0 {
		return fmt.Errorf("reconcile windows must not be negative")
	}
	if c.AuthEnabled() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.access_password is set")
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.enabled is true")
	}
	return nil
}
