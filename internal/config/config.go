// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider names a supported source code host.
type Provider string

const (
	ProviderBitbucket Provider = "bitbucket"
	ProviderGitHub    Provider = "github"
)

// defaultSchedule fires at 10:00 every weekday (six fields, leading seconds).
const defaultSchedule = "0 0 10 * * MON-FRI"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Provider      Provider
	Workspace     string
	Repositories  []string
	Token         string
	Username      string
	AppPassword   string
	WebhookURL    string
	WebhookSecret string
	Schedule      string
	ListenAddr    string
	HTTPTimeout   time.Duration
}

// HasToken returns true when a bearer credential for the host is configured.
func (c *Config) HasToken() bool {
	return c.Token != ""
}

// HasBasicAuth returns true when a username/app-password pair is configured.
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.AppPassword != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. Required variables: PRDIGEST_WORKSPACE, PRDIGEST_REPOSITORIES,
// PRDIGEST_WEBHOOK_URL, plus host credentials (PRDIGEST_TOKEN, or
// PRDIGEST_USERNAME with PRDIGEST_APP_PASSWORD for the bitbucket provider).
// Optional variables with defaults: PRDIGEST_PROVIDER (bitbucket),
// PRDIGEST_SCHEDULE (10:00 on weekdays), PRDIGEST_LISTEN_ADDR
// (127.0.0.1:8080), PRDIGEST_HTTP_TIMEOUT (30s).
func Load() (*Config, error) {
	provider := ProviderBitbucket
	if v, ok := os.LookupEnv("PRDIGEST_PROVIDER"); ok && v != "" {
		provider = Provider(strings.ToLower(strings.TrimSpace(v)))
	}
	if provider != ProviderBitbucket && provider != ProviderGitHub {
		return nil, fmt.Errorf("PRDIGEST_PROVIDER has unsupported value %q: expected bitbucket or github", provider)
	}

	workspace := os.Getenv("PRDIGEST_WORKSPACE")
	if workspace == "" {
		return nil, errors.New("PRDIGEST_WORKSPACE is required")
	}

	repositories := splitList(os.Getenv("PRDIGEST_REPOSITORIES"))
	if len(repositories) == 0 {
		return nil, errors.New("PRDIGEST_REPOSITORIES is required: comma-separated repository identifiers")
	}

	token := os.Getenv("PRDIGEST_TOKEN")
	username := os.Getenv("PRDIGEST_USERNAME")
	appPassword := os.Getenv("PRDIGEST_APP_PASSWORD")

	switch provider {
	case ProviderGitHub:
		if token == "" {
			return nil, errors.New("PRDIGEST_TOKEN is required for the github provider")
		}
	case ProviderBitbucket:
		if token == "" && (username == "" || appPassword == "") {
			return nil, errors.New("host credentials missing: set PRDIGEST_TOKEN or both PRDIGEST_USERNAME and PRDIGEST_APP_PASSWORD")
		}
	}

	webhookURL := os.Getenv("PRDIGEST_WEBHOOK_URL")
	if webhookURL == "" {
		return nil, errors.New("PRDIGEST_WEBHOOK_URL is required")
	}

	schedule := defaultSchedule
	if v, ok := os.LookupEnv("PRDIGEST_SCHEDULE"); ok && v != "" {
		schedule = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PRDIGEST_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	httpTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("PRDIGEST_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PRDIGEST_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		httpTimeout = parsed
	}

	return &Config{
		Provider:      provider,
		Workspace:     workspace,
		Repositories:  repositories,
		Token:         token,
		Username:      username,
		AppPassword:   appPassword,
		WebhookURL:    webhookURL,
		WebhookSecret: os.Getenv("PRDIGEST_WEBHOOK_SECRET"),
		Schedule:      schedule,
		ListenAddr:    listenAddr,
		HTTPTimeout:   httpTimeout,
	}, nil
}

// splitList splits a comma-separated value, trimming whitespace and dropping
// empty entries. Order is preserved; it decides digest order.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
