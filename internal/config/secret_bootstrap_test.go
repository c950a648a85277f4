package config

import (
	"testing"
)

func TestEnsureSecrets_GeneratesMissingSigningKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	// 32 random bytes hex-encoded -> 64 chars.
	if len(cfg.Security.JWTSigningKey) != 64 {
		t.Fatalf("signing key length = %d, want 64", len(cfg.Security.JWTSigningKey))
	}
}

func TestEnsureSecrets_PreservesProvidedKey(t *testing.T) {
	t.Parallel()

	const key = "abcdefghijklmnopqrstuvwxyzABCDEF123456"
	cfg := &Config{Security: SecurityConfig{JWTSigningKey: key}}

	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}
	if got := cfg.Security.JWTSigningKey; got != key {
		t.Fatalf("signing key changed unexpectedly: %q", got)
	}
}

func TestConfigValidate_RejectsShortSigningKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{Security: SecurityConfig{JWTSigningKey: "short-key"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for short signing key, got nil")
	}
}
