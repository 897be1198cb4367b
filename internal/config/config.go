// SPDX-License-Identifier: MIT

// Package config loads the VTN and VEN agent configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// VTN holds the server-side configuration.
type VTN struct {
	// Listen is the host:port the HTTP server binds to.
	Listen string
	// DBPath is the SQLite database file path.
	DBPath string
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string
	// TokenTTL bounds the lifetime of issued access tokens.
	TokenTTL time.Duration
	// LogLevel is the zerolog level name.
	LogLevel string
	// BootstrapClientID and BootstrapClientSecret, when both set, seed a
	// user-manager credential on first start so a fresh VTN is usable.
	BootstrapClientID     string
	BootstrapClientSecret string
}

// VTNFromEnv builds the server configuration from OADR_* variables.
func VTNFromEnv() VTN {
	return VTN{
		Listen:                ParseString("OADR_LISTEN", ":3000"),
		DBPath:                ParseString("OADR_DB_PATH", "vtn.db"),
		JWTSecret:             ParseString("OADR_JWT_SECRET", ""),
		TokenTTL:              ParseDuration("OADR_TOKEN_TTL", 30*24*time.Hour),
		LogLevel:              ParseString("OADR_LOG_LEVEL", "info"),
		BootstrapClientID:     ParseString("OADR_BOOTSTRAP_CLIENT_ID", ""),
		BootstrapClientSecret: ParseString("OADR_BOOTSTRAP_CLIENT_SECRET", ""),
	}
}

// Validate rejects configurations the server must not start with.
func (c VTN) Validate() error {
	if c.Listen == "" {
		return errors.New("config: OADR_LISTEN must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("config: OADR_DB_PATH must not be empty")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("config: OADR_JWT_SECRET must be at least 32 bytes")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: OADR_TOKEN_TTL must be positive")
	}
	if (c.BootstrapClientID == "") != (c.BootstrapClientSecret == "") {
		return errors.New("config: OADR_BOOTSTRAP_CLIENT_ID and OADR_BOOTSTRAP_CLIENT_SECRET must be set together")
	}
	return nil
}

// Agent holds the VEN-agent configuration.
type Agent struct {
	// VTNURL is the base URL of the VTN, e.g. "https://vtn.example/openadr3".
	VTNURL string
	// ClientID / ClientSecret authenticate the agent against /auth/token.
	ClientID     string
	ClientSecret string
	// ProgramName selects the program whose events drive the timeline.
	ProgramName string
	// PollInterval is the delay between VTN polls.
	PollInterval time.Duration
	// LogLevel is the zerolog level name.
	LogLevel string
}

// AgentFromEnv builds the agent configuration from OADR_* variables.
func AgentFromEnv() Agent {
	return Agent{
		VTNURL:       ParseString("OADR_VTN_URL", "http://localhost:3000"),
		ClientID:     ParseString("OADR_CLIENT_ID", ""),
		ClientSecret: ParseString("OADR_CLIENT_SECRET", ""),
		ProgramName:  ParseString("OADR_PROGRAM_NAME", ""),
		PollInterval: ParseDuration("OADR_POLL_INTERVAL", 30*time.Second),
		LogLevel:     ParseString("OADR_LOG_LEVEL", "info"),
	}
}

// Validate rejects configurations the agent must not start with.
func (c Agent) Validate() error {
	if _, err := url.Parse(c.VTNURL); err != nil || c.VTNURL == "" {
		return fmt.Errorf("config: OADR_VTN_URL is not a valid URL: %q", c.VTNURL)
	}
	if c.ProgramName == "" {
		return errors.New("config: OADR_PROGRAM_NAME must not be empty")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: OADR_POLL_INTERVAL must be positive")
	}
	return nil
}
