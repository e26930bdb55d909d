package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	JWTTTL           time.Duration `mapstructure:"JWT_TTL"`
	AuthCookieName   string        `mapstructure:"AUTH_COOKIE_NAME"`
	AllowAdminSignup bool          `mapstructure:"ALLOW_ADMIN_SIGNUP"`
	AuthRateLimitRPS float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateBurst    int           `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Timezone         string        `mapstructure:"TIMEZONE"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFile          string        `mapstructure:"LOG_FILE"`
	LogMaxSizeMB     int           `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups    int           `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays    int           `mapstructure:"LOG_MAX_AGE_DAYS"`
	StatsWorkers     int           `mapstructure:"STATS_WORKERS"`
	StatsCron        string        `mapstructure:"STATS_CRON"`
	BarcodeNodeID    int64         `mapstructure:"BARCODE_NODE_ID"`
	SMSEdge          string        `mapstructure:"SMS_EDGE"`
	SMSAccountSID    string        `mapstructure:"SMS_ACCOUNT_SID"`
	SMSAuthToken     string        `mapstructure:"SMS_AUTH_TOKEN"`
	SMSFrom          string        `mapstructure:"SMS_FROM"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("JWT_ISSUER", "medivision")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("AUTH_COOKIE_NAME", "accessToken")
	v.SetDefault("ALLOW_ADMIN_SIGNUP", false)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1.0)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 5)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "16K")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)
	v.SetDefault("STATS_WORKERS", 4)
	v.SetDefault("STATS_CRON", "*/15 * * * *")
	v.SetDefault("BARCODE_NODE_ID", 1)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"JWT_SECRET", "JWT_ISSUER", "JWT_TTL", "AUTH_COOKIE_NAME", "ALLOW_ADMIN_SIGNUP",
		"AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
		"CORS_ORIGINS", "BODY_LIMIT", "REQUEST_TIMEOUT", "TIMEZONE",
		"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
		"STATS_WORKERS", "STATS_CRON", "BARCODE_NODE_ID",
		"SMS_EDGE", "SMS_ACCOUNT_SID", "SMS_AUTH_TOKEN", "SMS_FROM",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := v.GetString("CORS_ORIGINS")
	if origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves TIMEZONE. Calendar-day boundaries for statistics and
// sale filters are computed in this location.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing secret of at least 32 bytes is mandatory.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
	} else if len(c.JWTSecret) < 32 && c.IsProduction() {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production, got %d", len(c.JWTSecret))
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.AuthRateLimitRPS <= 0 || c.AuthRateBurst < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS must be positive and AUTH_RATE_LIMIT_BURST at least 1")
	}
	if c.StatsWorkers < 1 {
		return fmt.Errorf("STATS_WORKERS must be at least 1, got %d", c.StatsWorkers)
	}
	if c.BarcodeNodeID < 0 || c.BarcodeNodeID > 1023 {
		return fmt.Errorf("BARCODE_NODE_ID must be in [0, 1023], got %d", c.BarcodeNodeID)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SMSAccountSID != "" && (c.SMSAuthToken == "" || c.SMSFrom == "") {
		return fmt.Errorf("SMS_AUTH_TOKEN and SMS_FROM are required when SMS_ACCOUNT_SID is set")
	}
	return nil
}

// SigningSecret returns the JWT key. Development runs without JWT_SECRET
// get a fixed key so tokens survive restarts.
func (c *Config) SigningSecret() []byte {
	if c.JWTSecret == "" && c.IsDev() {
		return []byte("medivision-development-only-signing-secret")
	}
	return []byte(c.JWTSecret)
}
