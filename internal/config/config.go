// Package config provides application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode
	Port string

	GCPProjectID string
	GeminiAPIKey string
	ModelName    string

	StorageBackend string // "memory", "sqlite" or "firestore"
	DBPath         string
	UseMockLLM     bool

	// Triage tunables. The front-end revisions disagreed on these values,
	// so they are explicit knobs instead of constants.
	ContextWindow int // rolling-context size fed to the classifier
	MemoryCap     int // max length of the per-user insight digest, in runes
	AlertCap      int // ring-buffer bound of the alert log

	// Access control knobs; empty key means the gate is disabled.
	StudentAccessKey string
	TeacherAccessKey string
	EnforceRoleMatch bool
}

// Load reads the .env file (if any) and all env vars, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mode := ModeLocal
	if getEnv("SPSS_MODE", "local") == "gcp" {
		mode = ModeGCP
	}

	cfg := &Config{
		Mode: mode,
		Port: getEnv("SPSS_PORT", "8080"),

		GCPProjectID: getEnv("SPSS_GCP_PROJECT", ""),
		GeminiAPIKey: getEnv("SPSS_GEMINI_API_KEY", ""),
		ModelName:    getEnv("SPSS_MODEL_NAME", "gemini-2.5-flash"),

		StorageBackend: getEnv("SPSS_STORAGE_BACKEND", "memory"),
		DBPath:         getEnv("SPSS_DB_PATH", "./data/spss.db"),
		UseMockLLM:     getBoolEnv("SPSS_USE_MOCK_LLM", mode == ModeLocal),

		ContextWindow: getIntEnv("SPSS_CONTEXT_WINDOW", 6),
		MemoryCap:     getIntEnv("SPSS_MEMORY_CAP", 400),
		AlertCap:      getIntEnv("SPSS_ALERT_CAP", 50),

		StudentAccessKey: getEnv("SPSS_STUDENT_KEY", ""),
		TeacherAccessKey: getEnv("SPSS_TEACHER_KEY", ""),
		EnforceRoleMatch: getBoolEnv("SPSS_ENFORCE_ROLE", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("SPSS_PORT cannot be empty")
	}
	switch c.StorageBackend {
	case "memory", "sqlite", "firestore":
	default:
		return fmt.Errorf("unknown SPSS_STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageBackend == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("SPSS_DB_PATH cannot be empty for the sqlite backend")
	}
	if c.StorageBackend == "firestore" && c.GCPProjectID == "" {
		return fmt.Errorf("SPSS_GCP_PROJECT is required for the firestore backend")
	}
	if !c.UseMockLLM && c.GeminiAPIKey == "" && c.Mode != ModeGCP {
		return fmt.Errorf("SPSS_GEMINI_API_KEY is required when the mock LLM is disabled")
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("SPSS_CONTEXT_WINDOW must be > 0")
	}
	if c.MemoryCap <= 0 {
		return fmt.Errorf("SPSS_MEMORY_CAP must be > 0")
	}
	if c.AlertCap <= 0 {
		return fmt.Errorf("SPSS_ALERT_CAP must be > 0")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
