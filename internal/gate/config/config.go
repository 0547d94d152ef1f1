// Package config loads crossgated's configuration from environment
// variables with defaults and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity.
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// IdentLevel is the identification granularity for rule matching:
	// "host" or "base-domain".
	IdentLevel string `koanf:"ident_level" validate:"required,oneof=host base-domain"`

	// StorePath is where the rule database lives.
	StorePath string `koanf:"store_path" validate:"required"`

	// IdentCacheSize bounds the identifier memoization cache.
	IdentCacheSize uint `koanf:"ident_cache_size" validate:"required,gte=1"`

	// SuppressWindowMs is the duplicate-call suppression window.
	SuppressWindowMs uint `koanf:"suppress_window_ms" validate:"required,gte=1,lte=10000"`

	// MaxRedirectWalk bounds the backward redirect chain walk.
	MaxRedirectWalk uint `koanf:"max_redirect_walk" validate:"required,gte=1,lte=1000"`

	// PrivilegedOrigins are URI prefixes whose requests are allowed
	// unconditionally. Trusting these is a policy decision, so the list
	// is configuration rather than a constant.
	PrivilegedOrigins []string `koanf:"privileged_origins" validate:"dive,uri_prefix"`
}

// DEFAULT_APP_CONFIG defines the default configuration for crossgated.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:               "prod",
	LogLevel:          "info",
	IdentLevel:        "base-domain",
	StorePath:         "/var/lib/crossgate/rules.db",
	IdentCacheSize:    2048,
	SuppressWindowMs:  200,
	MaxRedirectWalk:   100,
	PrivilegedOrigins: []string{"chrome://browser/"},
}

// validURIPrefix validates that a privileged origin entry looks like a
// URI prefix: a scheme separator must be present and the scheme must
// survive canonical extraction.
func validURIPrefix(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !strings.Contains(s, ":") {
		return false
	}
	return uriutil.Scheme(s) != ""
}

// envLoader loads environment variables with the prefix "GATE_",
// lowercasing keys and splitting list values on spaces or commas. A
// package variable so tests can substitute it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GATE_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "GATE_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG via the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "uri_prefix" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("uri_prefix", validURIPrefix)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
