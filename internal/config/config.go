// Package config loads server settings.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. an optional .env file in the working directory
//  3. environment variables
//  4. command-line flags
//
// The .env file never overrides a variable already present in the
// environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minSecretLength matches what the token service accepts.
const minSecretLength = 16

type OAuthClient struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether the provider has credentials.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Config struct {
	Port int

	DBDriver       string
	DBDSN          string
	DBQueryTimeout time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	Google           OAuthClient
	Facebook         OAuthClient
	LoginRedirectURL string

	S3 S3

	// WSOriginPatterns lists extra browser origins allowed on /ws.
	WSOriginPatterns []string

	LogLevel slog.Level
}

func defaults() *Config {
	return &Config{
		Port:             8080,
		DBDriver:         "sqlite",
		DBDSN:            "data/marketplace.db",
		DBQueryTimeout:   5 * time.Second,
		TokenTTL:         24 * time.Hour,
		LoginRedirectURL: "/",
		S3:               S3{Region: "us-east-1"},
		LogLevel:         slog.LevelInfo,
	}
}

// Load builds the configuration. args are the command-line arguments without
// the program name.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	cfg := defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}

	// Callback URLs default to this server once the port is final.
	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}
	if cfg.Facebook.CallbackURL == "" {
		cfg.Facebook.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/facebook/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			d, perr := time.ParseDuration(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("PORT"); ok {
		p, perr := strconv.Atoi(strings.TrimSpace(v))
		if perr != nil {
			return fmt.Errorf("config: PORT: %w", perr)
		}
		c.Port = p
	}

	str("DB_DRIVER", &c.DBDriver)
	str("DB_DSN", &c.DBDSN)
	dur("DB_QUERY_TIMEOUT", &c.DBQueryTimeout)

	str("JWT_SECRET", &c.JWTSecret)
	dur("TOKEN_TTL", &c.TokenTTL)

	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_CALLBACK_URL", &c.Google.CallbackURL)
	str("FACEBOOK_CLIENT_ID", &c.Facebook.ClientID)
	str("FACEBOOK_CLIENT_SECRET", &c.Facebook.ClientSecret)
	str("FACEBOOK_CALLBACK_URL", &c.Facebook.CallbackURL)
	str("LOGIN_REDIRECT_URL", &c.LoginRedirectURL)

	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)

	if v, ok := os.LookupEnv("WS_ORIGIN_PATTERNS"); ok {
		c.WSOriginPatterns = splitList(v)
	}

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if perr := c.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); perr != nil {
			return fmt.Errorf("config: LOG_LEVEL: %w", perr)
		}
	}

	return err
}

func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet("marketplace", flag.ContinueOnError)

	flags.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	flags.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "database driver: sqlite or postgres")
	flags.StringVar(&c.DBDSN, "db-dsn", c.DBDSN, "database DSN (file path for sqlite)")
	flags.DurationVar(&c.DBQueryTimeout, "db-query-timeout", c.DBQueryTimeout, "per-operation storage deadline")
	flags.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "session token lifetime")
	logLevel := flags.String("log-level", c.LogLevel.String(), "log level: debug, info, warn, error")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.LogLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("config: -log-level: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.DBQueryTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT must be positive"))
	}
	if len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SQLiteDir returns the directory a file-backed sqlite DSN lives in, or ""
// when there is nothing to create: another driver, an in-memory database,
// or a file in the working directory. A "file:" URI prefix and any query
// string are stripped first.
func (c *Config) SQLiteDir() string {
	if c.DBDriver != "sqlite" {
		return ""
	}
	path, query, _ := strings.Cut(strings.TrimPrefix(c.DBDSN, "file:"), "?")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
