package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	// No env overrides
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.IdentLevel != "base-domain" {
		t.Errorf("expected IdentLevel=base-domain, got %q", cfg.IdentLevel)
	}
	if cfg.StorePath != "/var/lib/crossgate/rules.db" {
		t.Errorf("expected StorePath=/var/lib/crossgate/rules.db, got %q", cfg.StorePath)
	}
	if cfg.IdentCacheSize != 2048 {
		t.Errorf("expected IdentCacheSize=2048, got %d", cfg.IdentCacheSize)
	}
	if cfg.SuppressWindowMs != 200 {
		t.Errorf("expected SuppressWindowMs=200, got %d", cfg.SuppressWindowMs)
	}
	if cfg.MaxRedirectWalk != 100 {
		t.Errorf("expected MaxRedirectWalk=100, got %d", cfg.MaxRedirectWalk)
	}
	wantPrivileged := []string{"chrome://browser/"}
	if len(cfg.PrivilegedOrigins) != len(wantPrivileged) {
		t.Errorf("expected PrivilegedOrigins length %d, got %d", len(wantPrivileged), len(cfg.PrivilegedOrigins))
	} else {
		for i, v := range wantPrivileged {
			if cfg.PrivilegedOrigins[i] != v {
				t.Errorf("expected PrivilegedOrigins[%d]=%q, got %q", i, v, cfg.PrivilegedOrigins[i])
			}
		}
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("GATE_ENV", "dev")
	t.Setenv("GATE_LOG_LEVEL", "debug")
	t.Setenv("GATE_IDENT_LEVEL", "host")
	t.Setenv("GATE_STORE_PATH", "/tmp/rules.db")
	t.Setenv("GATE_IDENT_CACHE_SIZE", "512")
	t.Setenv("GATE_SUPPRESS_WINDOW_MS", "500")
	t.Setenv("GATE_MAX_REDIRECT_WALK", "50")
	t.Setenv("GATE_PRIVILEGED_ORIGINS", "chrome://browser/,moz-extension://vendor/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.IdentLevel != "host" {
		t.Errorf("expected IdentLevel=host, got %q", cfg.IdentLevel)
	}
	if cfg.StorePath != "/tmp/rules.db" {
		t.Errorf("expected StorePath=/tmp/rules.db, got %q", cfg.StorePath)
	}
	if cfg.IdentCacheSize != 512 {
		t.Errorf("expected IdentCacheSize=512, got %d", cfg.IdentCacheSize)
	}
	if cfg.SuppressWindowMs != 500 {
		t.Errorf("expected SuppressWindowMs=500, got %d", cfg.SuppressWindowMs)
	}
	if cfg.MaxRedirectWalk != 50 {
		t.Errorf("expected MaxRedirectWalk=50, got %d", cfg.MaxRedirectWalk)
	}
	wantPrivileged := []string{"chrome://browser/", "moz-extension://vendor/"}
	if len(cfg.PrivilegedOrigins) != len(wantPrivileged) {
		t.Errorf("expected PrivilegedOrigins length %d, got %d", len(wantPrivileged), len(cfg.PrivilegedOrigins))
	} else {
		for i, v := range wantPrivileged {
			if cfg.PrivilegedOrigins[i] != v {
				t.Errorf("expected PrivilegedOrigins[%d]=%q, got %q", i, v, cfg.PrivilegedOrigins[i])
			}
		}
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults, got nil")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation, got nil")
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("GATE_ENV", "staging")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid GATE_ENV, got nil")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("GATE_LOG_LEVEL", "trace")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid GATE_LOG_LEVEL, got nil")
	}
}

func TestLoad_InvalidIdentLevel(t *testing.T) {
	t.Setenv("GATE_IDENT_LEVEL", "registrable")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid GATE_IDENT_LEVEL, got nil")
	}
}

func TestLoad_EmptyStorePath(t *testing.T) {
	t.Setenv("GATE_STORE_PATH", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for empty GATE_STORE_PATH, got nil")
	}
}

func TestLoad_CacheSizeNaN(t *testing.T) {
	t.Setenv("GATE_IDENT_CACHE_SIZE", "not_a_number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for non-numeric GATE_IDENT_CACHE_SIZE, got nil")
	}
}

func TestLoad_SuppressWindowOutOfRange(t *testing.T) {
	t.Setenv("GATE_SUPPRESS_WINDOW_MS", "60000")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for out-of-range GATE_SUPPRESS_WINDOW_MS, got nil")
	}
}

func TestLoad_InvalidPrivilegedOrigin(t *testing.T) {
	t.Setenv("GATE_PRIVILEGED_ORIGINS", "browser-without-scheme")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for schemeless privileged origin prefix, got nil")
	}
}

func TestValidURIPrefix(t *testing.T) {
	type testCase struct {
		input    string
		expected bool
	}

	cases := []testCase{
		{"chrome://browser/", true},
		{"moz-extension://vendor/", true},
		{"https://trusted.example/", true},
		{"about:config", true},
		{"no-scheme-here", false},
		{"://missing", false},
		{"", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("uri_prefix", validURIPrefix)

	for _, tc := range cases {
		// Use a struct to test the validator
		type S struct {
			Prefix string `validate:"uri_prefix"`
		}
		s := S{Prefix: tc.input}
		err := validate.Struct(s)
		if tc.expected && err != nil {
			t.Errorf("validURIPrefix(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validURIPrefix(%q) = true, want false", tc.input)
		}
	}
}

func TestDefaultLoader_LoadsDefaults(t *testing.T) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		t.Fatalf("defaultLoader returned error: %v", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// Compare a subset of defaults
	if cfg.Env != DEFAULT_APP_CONFIG.Env {
		t.Errorf("expected Env=%q, got %q", DEFAULT_APP_CONFIG.Env, cfg.Env)
	}
	if cfg.IdentLevel != DEFAULT_APP_CONFIG.IdentLevel {
		t.Errorf("expected IdentLevel=%q, got %q", DEFAULT_APP_CONFIG.IdentLevel, cfg.IdentLevel)
	}
	if cfg.StorePath != DEFAULT_APP_CONFIG.StorePath {
		t.Errorf("expected StorePath=%q, got %q", DEFAULT_APP_CONFIG.StorePath, cfg.StorePath)
	}
	if cfg.IdentCacheSize != DEFAULT_APP_CONFIG.IdentCacheSize {
		t.Errorf("expected IdentCacheSize=%d, got %d", DEFAULT_APP_CONFIG.IdentCacheSize, cfg.IdentCacheSize)
	}
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	DEFAULT_APP_CONFIG = AppConfig{
		Env:               "prod",
		LogLevel:          "info",
		IdentLevel:        "base-domain",
		StorePath:         "/var/lib/crossgate/rules.db",
		IdentCacheSize:    2048,
		SuppressWindowMs:  200,
		MaxRedirectWalk:   100,
		PrivilegedOrigins: []string{"not_a_uri_prefix"},
	}

	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		t.Fatalf("defaultLoader returned error: %v", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("uri_prefix", validURIPrefix)
	if err := validate.Struct(&cfg); err == nil {
		t.Fatal("expected validation error for invalid default PrivilegedOrigins, got nil")
	}
}
