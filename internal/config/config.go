// internal/config/config.go
//
// Process configuration read from the environment (optionally seeded from a
// .env file by godotenv in development).
//
// Environment variables:
//   PORT              HTTP port (default 5175)
//   LOG_LEVEL         zerolog level name (default info)
//   DB_PATH           SQLite file (default ./data/puzzlequest.db)
//   LEVELS_FILE       YAML catalog replacing the embedded one
//   JWT_SECRET        HS256 signing key
//   JWT_EXPIRES_DAYS  auth cookie lifetime (default 14)
//   COOKIE_NAME       auth cookie name (default puzzlequest_token)
//   CLIENT_ORIGIN     CORS origin (default http://localhost:5173)
//   NODE_ENV          "production" switches cookies to Secure/SameSite=None
//   DAILY_SALT        salt of the featured level of the day
//   REVEAL_DELAY_MS   delay before auto-advancing a solved stage (default 1500)
//   SESSION_IDLE_MIN  idle minutes before a session is dropped (default 60)

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const devSecret = "dev_secret_change_me"

// Config is the resolved process configuration.
type Config struct {
	Port         string
	LogLevel     zerolog.Level
	DBPath       string
	LevelsFile   string
	JWTSecret    string
	JWTExpiry    time.Duration
	CookieName   string
	ClientOrigin string
	Production   bool
	DailySalt    string
	RevealDelay  time.Duration
	SessionIdle  time.Duration
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() Config {
	lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     lvl,
		DBPath:       getEnv("DB_PATH", "./data/puzzlequest.db"),
		LevelsFile:   os.Getenv("LEVELS_FILE"),
		JWTSecret:    getEnv("JWT_SECRET", devSecret),
		JWTExpiry:    time.Duration(envInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:   getEnv("COOKIE_NAME", "puzzlequest_token"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:   os.Getenv("NODE_ENV") == "production",
		DailySalt:    getEnv("DAILY_SALT", "local_dev_salt"),
		RevealDelay:  time.Duration(envInt("REVEAL_DELAY_MS", 1500)) * time.Millisecond,
		SessionIdle:  time.Duration(envInt("SESSION_IDLE_MIN", 60)) * time.Minute,
	}
}

// InsecureSecret reports whether the development signing key is in use.
func (c Config) InsecureSecret() bool { return c.JWTSecret == devSecret }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt parses k as an int, falling back to def when unset or malformed.
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
