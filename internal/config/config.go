package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server configuration. Every key can come from the
// environment, a .env file or, for a few, a command-line flag.
type Config struct {
	Port              string        `mapstructure:"PORT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFormat         string        `mapstructure:"LOG_FORMAT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	SeedFile          string        `mapstructure:"SEED_FILE"`
	AdminUsername     string        `mapstructure:"ADMIN_USERNAME"`
	AdminPassword     string        `mapstructure:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `mapstructure:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	BidIncrement      int64         `mapstructure:"BID_INCREMENT"`
	BidTimerSeconds   int           `mapstructure:"BID_TIMER_SECONDS"`
	ResetTimerOnBid   bool          `mapstructure:"RESET_TIMER_ON_BID"`
	InitialPurse      int64         `mapstructure:"INITIAL_PURSE"`
	MetricsEnabled    bool          `mapstructure:"METRICS_ENABLED"`
	OtlpEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtlpInsecure      bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AllowedOrigins    []string      `mapstructure:"ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"DATABASE_URL":                "",
	"SEED_FILE":                   "seed.yaml",
	"ADMIN_USERNAME":              "admin",
	"ADMIN_PASSWORD":              "",
	"ADMIN_PASSWORD_HASH":         "",
	"JWT_SECRET":                  "",
	"JWT_TTL":                     "12h",
	"BID_INCREMENT":               200_000,
	"BID_TIMER_SECONDS":           20,
	"RESET_TIMER_ON_BID":          true,
	"INITIAL_PURSE":               10_000_000,
	"METRICS_ENABLED":             true,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"REQUEST_TIMEOUT":             "5s",
	"ALLOWED_ORIGINS":             "",
}

// Load reads flags from args, preloads the env file they name and resolves
// every key from flags, then environment, then defaults.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("auction-server", pflag.ContinueOnError)
	envFile := flags.String("config", ".env", "env file to preload")
	flags.String("seed", "", "seed YAML with participants and catalogue")
	flags.String("port", "", "listen port")
	flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	for key, flag := range map[string]string{"SEED_FILE": "seed", "PORT": "port", "LOG_LEVEL": "log-level"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var problems []string
	if c.Port == "" {
		problems = append(problems, "PORT is empty")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		problems = append(problems, "ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if c.BidIncrement <= 0 {
		problems = append(problems, "BID_INCREMENT must be positive")
	}
	if c.BidTimerSeconds <= 0 {
		problems = append(problems, "BID_TIMER_SECONDS must be positive")
	}
	if c.InitialPurse < 0 {
		problems = append(problems, "INITIAL_PURSE must not be negative")
	}
	if c.JWTTTL <= 0 {
		problems = append(problems, "JWT_TTL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// splitList flattens "a, b" style entries the env var form produces.
func splitList(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
