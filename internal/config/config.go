// Package config reads process settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	Env      string
	LogLevel string

	Engine      string
	CacheSize   int
	EvalTimeout time.Duration

	Port         string
	RateRequests int
	RateWindow   time.Duration
	CORSOrigins  []string
	JWTSecret    string
	BlockedIPs   []string

	DB DB
}

// DB describes the script store connection. An empty Driver disables the store.
type DB struct {
	Driver  string
	Host    string
	User    string
	Pass    string
	Name    string
	MaxOpen int
	MaxIdle int
}

// Load reads .env (if any) and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset or malformed values take defaults.
func FromEnv(getenv func(string) string) Config {
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	num := func(key string, def int) int {
		n, err := cast.ToIntE(strings.TrimSpace(getenv(key)))
		if err != nil || n == 0 {
			return def
		}
		return n
	}

	cfg := Config{
		Env:          str("APP_ENV", "development"),
		LogLevel:     str("LOG_LEVEL", "info"),
		Engine:       strings.ToLower(str("SCRIPT_ENGINE", "lua")),
		CacheSize:    num("SCRIPT_CACHE_SIZE", 0),
		EvalTimeout:  duration(getenv("SCRIPT_EVAL_TIMEOUT")),
		Port:         str("APP_PORT", ":3000"),
		RateRequests: num("RATE_LIMIT_REQUESTS", 0),
		RateWindow:   time.Duration(num("RATE_LIMIT_WINDOW", 60)) * time.Second,
		CORSOrigins:  list(str("CORS_ORIGINS", "*")),
		JWTSecret:    getenv("JWT_SECRET"),
		BlockedIPs:   list(getenv("BLOCKED_IPS")),
		DB: DB{
			Driver:  strings.ToLower(strings.TrimSpace(getenv("DB_DRIVER"))),
			Host:    getenv("DB_HOST"),
			User:    getenv("DB_USER"),
			Pass:    getenv("DB_PASS"),
			Name:    getenv("DB_NAME"),
			MaxOpen: num("DB_MAX_OPEN_CONNS", 25),
			MaxIdle: num("DB_MAX_IDLE_CONNS", 5),
		},
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	return cfg
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN formats the connection string for the configured driver.
func (d DB) DSN() string {
	switch d.Driver {
	case "sqlite", "sqlite3":
		return d.Name
	case "sqlserver", "mssql":
		return fmt.Sprintf("sqlserver://%s:%s@%s?database=%s", d.User, d.Pass, d.Host, d.Name)
	case "postgres", "postgresql":
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", d.User, d.Pass, d.Host, d.Name)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s", d.User, d.Pass, d.Host, d.Name)
	}
}

// DriverName maps the configured driver to its database/sql registration.
func (d DB) DriverName() string {
	switch d.Driver {
	case "postgresql":
		return "postgres"
	case "mssql":
		return "sqlserver"
	case "sqlite3":
		return "sqlite"
	}
	return d.Driver
}

// duration accepts Go durations ("1500ms") or a bare number of seconds.
func duration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := cast.ToIntE(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := cast.ToDurationE(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
