// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestShouldUseTLS(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		host     string
		expected bool
	}{
		{"off mode", "off", "example.com", false},
		{"acme mode", "acme", "localhost", true},
		{"selfsigned mode", "selfsigned", "localhost", true},
		{"manual mode", "manual", "localhost", true},
		{"auto mode with localhost", "auto", "localhost", false},
		{"auto mode with remote host", "auto", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldUseTLS(tt.mode, tt.host))
		})
	}
}

func TestNewFromCLI_VerificationDefaults(t *testing.T) {
	var cfg *Config

	cmd := &cli.Command{
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg = NewFromCLI(cmd)
			return nil
		},
	}

	err := cmd.Run(context.Background(), []string{"test"})

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 4, cfg.Verification.CodeLength)
	assert.Equal(t, 5*time.Minute, cfg.Verification.CodeLifetime)
	assert.Equal(t, int64(3), cfg.Verification.MaxAttempts)
	assert.Equal(t, int64(5), cfg.Verification.LimitPerHour)
	assert.Equal(t, int64(1), cfg.Verification.LimitPer5Min)
}

func TestNewFromCLI_Overrides(t *testing.T) {
	var cfg *Config

	cmd := &cli.Command{
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg = NewFromCLI(cmd)
			return nil
		},
	}

	err := cmd.Run(context.Background(), []string{
		"test",
		"--code-length", "6",
		"--code-lifetime-minutes", "10",
		"--limit-per-5-minutes", "2",
	})

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 6, cfg.Verification.CodeLength)
	assert.Equal(t, 10*time.Minute, cfg.Verification.CodeLifetime)
	assert.Equal(t, int64(2), cfg.Verification.LimitPer5Min)
}

func TestBuildBaseURL(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 8080},
		TLS:    TLSConfig{Mode: "auto"},
	}
	assert.Equal(t, "http://localhost:8080", buildBaseURL(cfg))

	cfg = &Config{
		Server: ServerConfig{Host: "verify.example.com", Port: 443},
		TLS:    TLSConfig{Mode: "manual"},
	}
	assert.Equal(t, "https://verify.example.com", buildBaseURL(cfg))

	cfg = &Config{
		Server: ServerConfig{Host: "verify.example.com", Port: 8443},
		TLS:    TLSConfig{Mode: "acme"},
	}
	assert.Equal(t, "https://verify.example.com", buildBaseURL(cfg))
}
