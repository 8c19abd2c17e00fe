package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port          int           `envconfig:"PORT" default:"8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL   string        `envconfig:"DATABASE_URL" required:"true"`
	Version       string        `envconfig:"VERSION" default:"dev"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"12"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"true"`

	// SessionSweepInterval is how often expired sessions are purged and announced as signed out.
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`

	PreferenceBackend string `envconfig:"PREFERENCE_BACKEND" default:"postgres"`
	RedisURL          string `envconfig:"REDIS_URL" default:""`

	NameCheckInterval  time.Duration `envconfig:"NAME_CHECK_INTERVAL" default:"500ms"`
	SetupRedirectDelay time.Duration `envconfig:"SETUP_REDIRECT_DELAY" default:"5s"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	OAuthRedirectURL   string `envconfig:"OAUTH_REDIRECT_URL" default:"http://localhost:8080/auth/callback"`

	SeedFile string `envconfig:"SEED_FILE" default:""`
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval <= 0 {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", cfg.SessionSweepInterval)
	}
	return &cfg, nil
}
