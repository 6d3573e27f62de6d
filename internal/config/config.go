package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the studio processes.
// Values come from env; a .env file in the working directory is loaded first
// when present and never overrides variables already set.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Gemini  GeminiConfig
	HeyGen  HeyGenConfig
	Content ContentConfig
	Video   VideoConfig
	API     APIConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// DBConfig is optional: with an empty Host the API runs on in-memory repositories.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional: with an empty Host job snapshots are not cached.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type HeyGenConfig struct {
	APIKey  string
	BaseURL string
}

// ContentConfig bounds outbound text-generation calls.
type ContentConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

type VideoConfig struct {
	PollInterval  time.Duration
	MaxWait       time.Duration
	MaxConcurrent int
	CacheTTL      time.Duration
}

// APIConfig bounds inbound requests per client IP.
type APIConfig struct {
	RPS   float64
	Burst int
}

// LoadDotEnv loads .env if it exists. A missing file is not an error.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// Load reads the API process configuration.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Gemini, c.HeyGen = loadProviders()

	c.Content.RateLimit, parseErrs = optionalInt(parseErrs, "CONTENT_RATE_LIMIT")
	c.Content.RateWindow = mustDuration("CONTENT_RATE_WINDOW")

	c.Video = loadVideo()
	c.Video.MaxConcurrent, parseErrs = optionalInt(parseErrs, "RENDER_MAX_CONCURRENT")

	if v := strings.TrimSpace(os.Getenv("API_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("API_RPS must be a number, got %q", v))
		}
		c.API.RPS = f
	}
	c.API.Burst, parseErrs = optionalInt(parseErrs, "API_BURST")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.HasDB() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("DB_HOST is required in production"))
	}

	if c.HasRedis() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	errs = append(errs, c.ValidateProviders()...)

	if c.Content.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("CONTENT_RATE_LIMIT must be positive, got %d", c.Content.RateLimit))
	}
	if c.Content.RateLimit == 0 {
		c.Content.RateLimit = 5
	}
	if c.Content.RateWindow <= 0 {
		c.Content.RateWindow = time.Minute
	}

	c.Video.applyDefaults()
	if c.Video.MaxConcurrent <= 0 {
		c.Video.MaxConcurrent = 2
	}

	if c.API.RPS <= 0 {
		c.API.RPS = 10
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 20
	}

	return joinErrors(errs)
}

// ValidateProviders checks the remote service credentials. The CLI uses it
// on its own since it needs nothing else.
func (c *Config) ValidateProviders() []error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GOOGLE_API_KEY is required"))
	}
	if c.HeyGen.APIKey == "" {
		errs = append(errs, errors.New("HEYGEN_API_KEY is required"))
	}
	return errs
}

// LoadCLI reads only what the command-line client needs.
func LoadCLI() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	c := Config{}
	c.Gemini, c.HeyGen = loadProviders()
	c.Video = loadVideo()
	c.Video.applyDefaults()

	var parseErrs []error
	c.Content.RateLimit, parseErrs = optionalInt(parseErrs, "CONTENT_RATE_LIMIT")
	c.Content.RateWindow = mustDuration("CONTENT_RATE_WINDOW")
	if c.Content.RateLimit <= 0 {
		c.Content.RateLimit = 5
	}
	if c.Content.RateWindow <= 0 {
		c.Content.RateWindow = time.Minute
	}

	errs := append(parseErrs, c.ValidateProviders()...)
	if err := joinErrors(errs); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) IsLocal() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

func (c Config) HasDB() bool { return c.DB.Host != "" }

func (c Config) HasRedis() bool { return c.Redis.Host != "" }

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func loadProviders() (GeminiConfig, HeyGenConfig) {
	g := GeminiConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Model:   strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		BaseURL: strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
	}
	h := HeyGenConfig{
		APIKey:  os.Getenv("HEYGEN_API_KEY"),
		BaseURL: strings.TrimSpace(os.Getenv("HEYGEN_BASE_URL")),
	}
	return g, h
}

func loadVideo() VideoConfig {
	return VideoConfig{
		PollInterval: mustDuration("VIDEO_POLL_INTERVAL"),
		MaxWait:      mustDuration("VIDEO_MAX_WAIT"),
		CacheTTL:     mustDuration("VIDEO_CACHE_TTL"),
	}
}

func (v *VideoConfig) applyDefaults() {
	if v.PollInterval <= 0 {
		v.PollInterval = 10 * time.Second
	}
	if v.MaxWait <= 0 {
		v.MaxWait = 600 * time.Second
	}
	if v.CacheTTL <= 0 {
		v.CacheTTL = 24 * time.Hour
	}
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(errs []error, key string) (int, []error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, errs
	}
	n, err := mustInt(key)
	return appendParseErr(errs, n, err)
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
