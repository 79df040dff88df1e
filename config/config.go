// Package config gathers runtime settings from .env files and PAGEPROBE_*
// environment variables.
package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the settings shared by every command.
type Config struct {
	UserAgent     string        // empty selects a random browser User-Agent
	Mobile        bool          // pick from the mobile User-Agent pool
	Timeout       time.Duration // per-request timeout
	LogLevel      string
	OutputDir     string
	CourtesyDelay time.Duration // pause after each successful fetch
	VerifyRate    int           // broken-link checks per second
	VerifyLinks   bool          // run broken-link verification in SEO mode
}

// Defaults used when neither env nor flags set a value.
const (
	DefaultTimeout       = 15 * time.Second
	DefaultLogLevel      = "warn"
	DefaultCourtesyDelay = time.Second
	DefaultVerifyRate    = 5
)

// Load reads .env files, then PAGEPROBE_* variables.
func Load(logger *logrus.Logger) Config {
	LoadEnv(logger)
	return Config{
		UserAgent:     GetEnv("PAGEPROBE_USER_AGENT", ""),
		Mobile:        GetEnvBool("PAGEPROBE_MOBILE", false),
		Timeout:       GetEnvDuration("PAGEPROBE_TIMEOUT", DefaultTimeout),
		LogLevel:      GetEnv("PAGEPROBE_LOG_LEVEL", DefaultLogLevel),
		OutputDir:     GetEnv("PAGEPROBE_OUTPUT_DIR", "."),
		CourtesyDelay: GetEnvDuration("PAGEPROBE_COURTESY_DELAY", DefaultCourtesyDelay),
		VerifyRate:    GetEnvInt("PAGEPROBE_VERIFY_RATE", DefaultVerifyRate),
		VerifyLinks:   GetEnvBool("PAGEPROBE_VERIFY_LINKS", true),
	}
}
