// Package credential stores provider API credentials and resolves which one
// serves a relay request.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
)

// Provider identifiers understood by the relay. Claude speaks the Anthropic
// messages protocol; every other provider is OpenAI-compatible.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderGrok      = "grok"
	ProviderWormGPT   = "wormgpt"
	ProviderHackerGPT = "hackergpt"
	ProviderClaude    = "claude"
	ProviderCustom    = "custom"
)

// Credential is a stored provider credential.
type Credential struct {
	ID       int64
	Provider string
	APIKey   string
	Endpoint string // optional custom base URL
	Model    string // optional explicit model name
	Modes    []chat.Mode

	Active bool

	// Usage quotas are declared but not enforced by the relay.
	DailyLimit   int
	MonthlyLimit int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EligibleFor reports whether the credential's mode set contains mode.
func (c Credential) EligibleFor(mode chat.Mode) bool {
	for _, m := range c.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Store persists credentials across SQLite/Postgres backends.
type Store interface {
	Create(ctx context.Context, cred Credential) (Credential, error)
	List(ctx context.Context) ([]Credential, error)
	// OldestActiveForMode returns the oldest-created active credential whose
	// eligible-mode set contains mode, or nil when none exists.
	OldestActiveForMode(ctx context.Context, mode chat.Mode) (*Credential, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	// Count reports how many credentials exist; used for first-run seeding.
	Count(ctx context.Context) (int, error)
	Close() error
}

// ErrNoCredential signals that no stored credential can serve the mode.
var ErrNoCredential = errors.New("credential: no usable credential for mode")

// Resolver selects the credential for a relay request.
type Resolver struct {
	store Store
}

// NewResolver wraps a read-only credential store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the credential to use for mode. A non-nil override is used
// verbatim with provider defaults filled in for a missing endpoint or model.
// Otherwise the oldest active eligible stored credential wins; no load
// balancing across eligible credentials. The second return reports whether
// the credential came from the store (eligible for rate-limit fallback).
func (r *Resolver) Resolve(ctx context.Context, mode chat.Mode, override *Credential) (Credential, bool, error) {
	if override != nil && strings.TrimSpace(override.APIKey) != "" {
		cred := *override
		if cred.Provider == "" {
			cred.Provider = ProviderOpenAI
		}
		applyDefaults(&cred, mode)
		return cred, false, nil
	}
	if r.store == nil {
		return Credential{}, false, ErrNoCredential
	}
	stored, err := r.store.OldestActiveForMode(ctx, mode)
	if err != nil {
		return Credential{}, false, err
	}
	if stored == nil {
		return Credential{}, false, ErrNoCredential
	}
	cred := *stored
	applyDefaults(&cred, mode)
	return cred, true, nil
}

// ProviderDefaults captures per-provider endpoint and model defaults.
type ProviderDefaults struct {
	Endpoint      string
	Model         string
	ElevatedModel string
	LowTierModel  string
	ImageModel    string
}

var defaults = map[string]ProviderDefaults{
	ProviderOpenAI: {
		Endpoint:      "https://api.openai.com/v1",
		Model:         "gpt-4o",
		ElevatedModel: "gpt-4.1",
		LowTierModel:  "gpt-4o-mini",
		ImageModel:    "gpt-4o",
	},
	ProviderGemini: {
		Endpoint:      "https://generativelanguage.googleapis.com/v1beta/openai",
		Model:         "gemini-2.5-pro",
		ElevatedModel: "gemini-2.5-pro",
		LowTierModel:  "gemini-2.5-flash",
		ImageModel:    "gemini-2.5-flash-image-preview",
	},
	ProviderClaude: {
		Endpoint:      "https://api.anthropic.com",
		Model:         "claude-3-5-sonnet-20241022",
		ElevatedModel: "claude-3-opus-20240229",
		LowTierModel:  "claude-3-5-haiku-20241022",
	},
	ProviderGrok: {
		Endpoint:     "https://api.x.ai/v1",
		Model:        "grok-2-latest",
		LowTierModel: "grok-2-mini",
	},
}

// Defaults returns the defaults entry for a provider; unknown providers fall
// back to the OpenAI entry (OpenAI-compatible wire shape).
func Defaults(provider string) ProviderDefaults {
	if d, ok := defaults[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return d
	}
	return defaults[ProviderOpenAI]
}

// applyDefaults fills a missing endpoint or model. Image modes take the
// provider's image model and elevated modes its higher-tier model when the
// credential names none explicitly.
func applyDefaults(cred *Credential, mode chat.Mode) {
	d := Defaults(cred.Provider)
	if strings.TrimSpace(cred.Endpoint) == "" {
		cred.Endpoint = d.Endpoint
	}
	if strings.TrimSpace(cred.Model) == "" {
		switch {
		case mode.AllowsImageOutput() && d.ImageModel != "":
			cred.Model = d.ImageModel
		case mode.Elevated() && d.ElevatedModel != "":
			cred.Model = d.ElevatedModel
		default:
			cred.Model = d.Model
		}
	}
}

// LowTier returns a copy of cred pointed at the provider's lower-tier model,
// used for the single rate-limit fallback attempt.
func LowTier(cred Credential) Credential {
	out := cred
	if low := Defaults(cred.Provider).LowTierModel; low != "" {
		out.Model = low
	}
	return out
}
