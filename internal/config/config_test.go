package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != ModeLocal {
		t.Fatalf("expected local mode, got %s", cfg.Mode)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.StorageBackend != "memory" {
		t.Fatalf("expected memory backend, got %s", cfg.StorageBackend)
	}
	if !cfg.UseMockLLM {
		t.Fatal("local mode must default to the mock LLM")
	}
	if cfg.ContextWindow != 6 || cfg.MemoryCap != 400 || cfg.AlertCap != 50 {
		t.Fatalf("unexpected triage defaults: %d/%d/%d",
			cfg.ContextWindow, cfg.MemoryCap, cfg.AlertCap)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SPSS_PORT", "9090")
	t.Setenv("SPSS_STORAGE_BACKEND", "sqlite")
	t.Setenv("SPSS_DB_PATH", "/tmp/spss-test.db")
	t.Setenv("SPSS_CONTEXT_WINDOW", "10")
	t.Setenv("SPSS_USE_MOCK_LLM", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.StorageBackend != "sqlite" || cfg.ContextWindow != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "dynamo" }},
		{"firestore without project", func(c *Config) { c.StorageBackend = "firestore"; c.GCPProjectID = "" }},
		{"real LLM without key", func(c *Config) { c.UseMockLLM = false; c.GeminiAPIKey = "" }},
		{"zero window", func(c *Config) { c.ContextWindow = 0 }},
		{"zero alert cap", func(c *Config) { c.AlertCap = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Mode:           ModeLocal,
				Port:           "8080",
				StorageBackend: "memory",
				UseMockLLM:     true,
				ContextWindow:  6,
				MemoryCap:      400,
				AlertCap:       50,
			}
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
