package model

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap/zapcore"
)

// ProviderKind selects the upstream model API shape.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"    // chat-completions
	ProviderAnthropic ProviderKind = "anthropic" // messages with top-level system
	ProviderCustom    ProviderKind = "custom"    // self-hosted, OpenAI-compatible
	ProviderGoogle    ProviderKind = "google"    // Gemini generateContent
)

// ProviderKinds lists every supported provider in display order.
var ProviderKinds = []ProviderKind{ProviderOpenAI, ProviderAnthropic, ProviderCustom, ProviderGoogle}

// Valid reports whether k names a supported provider.
func (k ProviderKind) Valid() bool {
	for _, known := range ProviderKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseProviderKind normalizes s and reports whether it names a known provider.
func ParseProviderKind(s string) (ProviderKind, bool) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// ErrInvalidConfig is the sentinel wrapped by every ConfigError.
var ErrInvalidConfig = eris.New("invalid provider config")

// ConfigError reports a provider configuration problem detected before any
// network call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "provider config: " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// ProviderConfig carries the credentials and routing for one upstream call.
// It is read-only for the duration of a call.
type ProviderConfig struct {
	Provider   ProviderKind `json:"provider" yaml:"provider"`
	Credential string       `json:"-" yaml:"-"`
	Model      string       `json:"model,omitempty" yaml:"model,omitempty"`
	Endpoint   string       `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Validate checks the invariants that must hold before a provider is built.
func (c ProviderConfig) Validate() error {
	if !c.Provider.Valid() {
		return &ConfigError{Field: "provider", Reason: "unknown provider " + strconv.Quote(string(c.Provider))}
	}
	if strings.TrimSpace(c.Credential) == "" {
		return &ConfigError{Field: "credential", Reason: "must not be empty"}
	}
	if c.Provider == ProviderCustom {
		if c.Endpoint == "" {
			return &ConfigError{Field: "endpoint", Reason: "required for custom provider"}
		}
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ConfigError{Field: "endpoint", Reason: "must be an absolute http(s) URL"}
		}
	}
	return nil
}

// MarshalLogObject renders the config for zap without the credential.
func (c ProviderConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("provider", string(c.Provider))
	if c.Model != "" {
		enc.AddString("model", c.Model)
	}
	if c.Provider == ProviderCustom && c.Endpoint != "" {
		enc.AddString("endpoint", c.Endpoint)
	}
	enc.AddBool("has_credential", c.Credential != "")
	return nil
}
