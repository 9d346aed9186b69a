package model

import "time"

// TenantSettings is the per-tenant provider configuration record.
type TenantSettings struct {
	TenantID  string       `json:"tenantId" yaml:"tenantId"`
	Provider  ProviderKind `json:"provider" yaml:"provider"`
	APIKey    string       `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model     string       `json:"model,omitempty" yaml:"model,omitempty"`
	Endpoint  string       `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// ProviderConfig converts the stored settings into a call configuration.
func (s TenantSettings) ProviderConfig() ProviderConfig {
	return ProviderConfig{
		Provider:   s.Provider,
		Credential: s.APIKey,
		Model:      s.Model,
		Endpoint:   s.Endpoint,
	}
}

// Redacted returns a copy safe to send back to clients.
func (s TenantSettings) Redacted() TenantSettings {
	if s.APIKey != "" {
		s.APIKey = redact(s.APIKey)
	}
	return s
}

func redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// ValuationRecord is a persisted valuation outcome.
type ValuationRecord struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	Request   ValuationRequest `json:"request"`
	Result    ValuationResult  `json:"result"`
	Provider  ProviderKind     `json:"provider"`
	Model     string           `json:"model,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// LeadScoreRecord is a persisted lead scoring outcome.
type LeadScoreRecord struct {
	ID        string             `json:"id"`
	TenantID  string             `json:"tenantId"`
	LeadID    string             `json:"leadId,omitempty"`
	Request   LeadScoringRequest `json:"request"`
	Result    LeadScoringResult  `json:"result"`
	Provider  ProviderKind       `json:"provider"`
	Model     string             `json:"model,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}
