// Package relay orchestrates one chat turn: moderation, credential
// resolution, mode dispatch and the provider call, with a single rate-limit
// fallback retry.
package relay

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/credential"
	"github.com/lumichat/lumichat-relay/internal/keyword"
	"github.com/lumichat/lumichat-relay/internal/moderation"
	"github.com/lumichat/lumichat-relay/internal/prompt"
	"github.com/lumichat/lumichat-relay/internal/provider"
	"github.com/lumichat/lumichat-relay/internal/provider/anthropic"
	"github.com/lumichat/lumichat-relay/internal/provider/loopback"
	"github.com/lumichat/lumichat-relay/internal/provider/openaicompat"
	"github.com/lumichat/lumichat-relay/internal/websearch"
)

// User-facing notices, in the UI's locale. Raw provider payloads never reach
// the client.
const (
	noticeBlocked     = "Táto téma nie je povolená. Skús sa ma spýtať na niečo iné. 🙈"
	noticeImageReady  = "Tu je tvoj vygenerovaný obrázok! 🎨"
	noticeVideoStub   = "🎬 Video generovanie je vo vývoji. Môžem ti zatiaľ pomôcť s návrhom scenára!"
	errNoCredential   = "Pre tento režim nie je nakonfigurovaný žiadny API kľúč."
	errImageFailed    = "Nepodarilo sa vygenerovať obrázok. Skús to znova."
	errRateLimited    = "Príliš veľa požiadaviek. Skús to znova o chvíľu."
	errUnavailable    = "Služba je momentálne nedostupná."
	errGeneric        = "Niečo sa pokazilo. Skús to znova."
	errInvalidRequest = "Neplatná požiadavka."
)

// searchTrigger and editTrigger are fixed keyword heuristics, the same
// substring-containment shape as the moderation filter.
var (
	searchTrigger = keyword.New("vyhľadaj", "nájdi", "hľadaj", "search", "find", "google", "internet", "web", "online")
	editTrigger   = keyword.New("uprav", "zmeň", "pridaj", "odstráň", "edit", "change", "modify", "add", "remove")
)

// Provider is the combined contract the orchestrator needs from a wire
// protocol variant.
type Provider interface {
	provider.ChatProvider
	provider.ImageProvider
}

// Factory builds a Provider for a resolved credential. Injected so the
// orchestrator is testable with fakes.
type Factory func(cred credential.Credential) (Provider, error)

// DefaultFactory dispatches on the credential's provider tag: claude speaks
// the Anthropic protocol, loopback is the offline echo, everything else is
// OpenAI-compatible.
func DefaultFactory(timeout time.Duration) Factory {
	return func(cred credential.Credential) (Provider, error) {
		switch strings.ToLower(strings.TrimSpace(cred.Provider)) {
		case credential.ProviderClaude:
			return anthropic.New(anthropic.Config{
				APIKey:         cred.APIKey,
				BaseURL:        cred.Endpoint,
				RequestTimeout: timeout,
			})
		case "loopback":
			return loopback.New(), nil
		default:
			return openaicompat.New(openaicompat.Config{
				Name:           cred.Provider,
				APIKey:         cred.APIKey,
				BaseURL:        cred.Endpoint,
				RequestTimeout: timeout,
			})
		}
	}
}

// FallbackRoute overrides the provider/model pair used for the single
// rate-limit retry. Empty fields inherit from the failing credential, with
// the model dropped to the provider's lower tier.
type FallbackRoute struct {
	Provider string
	APIKey   string
	Endpoint string
	Model    string
}

// Config wires an Orchestrator.
type Config struct {
	Resolver   *credential.Resolver
	Moderation *moderation.Filter
	Search     *websearch.Client // nil disables web search
	Factory    Factory
	Fallback   FallbackRoute
	Logger     *log.Logger
}

// Orchestrator handles relay requests. It holds no per-request state; every
// invocation is independent.
type Orchestrator struct {
	resolver   *credential.Resolver
	moderation *moderation.Filter
	search     *websearch.Client
	factory    Factory
	fallback   FallbackRoute
	logger     *log.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	factory := cfg.Factory
	if factory == nil {
		factory = DefaultFactory(0)
	}
	return &Orchestrator{
		resolver:   cfg.Resolver,
		moderation: cfg.Moderation,
		search:     cfg.Search,
		factory:    factory,
		fallback:   cfg.Fallback,
		logger:     cfg.Logger,
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// Outcome is what one relay run produced: either a token stream to relay or
// a structured JSON payload with its HTTP status.
type Outcome struct {
	Stream <-chan provider.StreamEvent
	JSON   any
	Status int
}

func jsonOutcome(status int, payload any) *Outcome {
	return &Outcome{JSON: payload, Status: status}
}

func errorOutcome(status int, msg string) *Outcome {
	return jsonOutcome(status, chat.ErrorResult{Error: msg})
}

// Handle runs the relay state machine for one request. It never panics its
// way out: every failure maps to a structured outcome.
func (o *Orchestrator) Handle(ctx context.Context, req chat.RelayRequest) *Outcome {
	if len(req.Messages) == 0 || !req.Mode.Valid() {
		return errorOutcome(http.StatusBadRequest, errInvalidRequest)
	}

	lastUser := req.LastUserMessage()

	// Moderation runs before any provider call; a hit costs zero upstream
	// requests.
	if o.moderation != nil {
		if term, blocked := o.moderation.Check(lastUser); blocked {
			o.logf("relay.blocked mode=%s term=%q", req.Mode, term)
			return jsonOutcome(http.StatusOK, chat.BlockResult{Blocked: true, Message: noticeBlocked})
		}
	}

	cred, fromStore, err := o.resolver.Resolve(ctx, req.Mode, overrideFrom(req))
	if err != nil {
		o.logf("relay.credential mode=%s err=%v", req.Mode, err)
		return errorOutcome(http.StatusBadRequest, errNoCredential)
	}

	switch {
	case req.Mode.AllowsImageOutput() && req.ImageBase64 == "":
		return o.handleImage(ctx, cred, provider.ImageRequest{Model: cred.Model, Prompt: lastUser})
	case req.Mode.AllowsImageOutput() && triggersEdit(req):
		return o.handleImage(ctx, cred, provider.ImageRequest{Model: cred.Model, Prompt: lastUser, ImageBase64: req.ImageBase64})
	case req.Mode == chat.ModeVideo:
		// Video generation is not implemented; callers get an explicit
		// pending marker and no provider call is made.
		o.logf("relay.video prompt_len=%d", len(lastUser))
		return jsonOutcome(http.StatusOK, chat.GeneratingResult{
			Generating: "video",
			Prompt:     lastUser,
			Message:    noticeVideoStub,
		})
	}

	return o.handleChat(ctx, req, cred, fromStore)
}

// overrideFrom maps the caller-supplied credential fields, if any.
func overrideFrom(req chat.RelayRequest) *credential.Credential {
	if strings.TrimSpace(req.UserAPIKey) == "" {
		return nil
	}
	return &credential.Credential{
		Provider: req.UserProvider,
		APIKey:   req.UserAPIKey,
		Endpoint: req.UserAPIEndpoint,
		Model:    req.UserAPIModel,
	}
}

func triggersEdit(req chat.RelayRequest) bool {
	_, ok := editTrigger.Match(req.LastUserMessage())
	return ok
}

func (o *Orchestrator) handleImage(ctx context.Context, cred credential.Credential, imgReq provider.ImageRequest) *Outcome {
	p, err := o.factory(cred)
	if err != nil {
		o.logf("relay.image provider=%s err=%v", cred.Provider, err)
		return errorOutcome(http.StatusInternalServerError, errGeneric)
	}
	start := time.Now()
	url, err := p.GenerateImage(ctx, imgReq)
	if err != nil {
		// All image failures collapse to a generation failure for the user.
		o.logf("relay.image provider=%s model=%s err=%v", p.Name(), imgReq.Model, err)
		return errorOutcome(http.StatusOK, errImageFailed)
	}
	o.logf("relay.image provider=%s model=%s total_ms=%d", p.Name(), imgReq.Model, time.Since(start).Milliseconds())
	return jsonOutcome(http.StatusOK, chat.ImageResult{Image: url, Message: noticeImageReady})
}

func (o *Orchestrator) handleChat(ctx context.Context, req chat.RelayRequest, cred credential.Credential, fromStore bool) *Outcome {
	webContext := ""
	if o.search != nil && req.Mode.AllowsWebSearch() {
		if term, ok := searchTrigger.Match(req.LastUserMessage()); ok {
			o.logf("relay.search mode=%s trigger=%q", req.Mode, term)
			webContext = o.search.Search(ctx, req.LastUserMessage())
		}
	}

	system := prompt.Compose(req.Mode, webContext)
	chatReq := provider.ChatRequest{Model: cred.Model, System: system, Messages: req.Messages}

	stream, err := o.streamWith(ctx, cred, chatReq)
	if err == nil {
		return &Outcome{Stream: stream}
	}

	// One fallback attempt on rate limiting, and only for stored
	// credentials: a caller-supplied key is an explicit provider choice we
	// never silently reroute.
	if provider.IsStatus(err, http.StatusTooManyRequests) && fromStore {
		fb := o.fallbackCredential(cred)
		o.logf("relay.chat rate-limited, retrying provider=%s model=%s", fb.Provider, fb.Model)
		chatReq.Model = fb.Model
		stream, ferr := o.streamWith(ctx, fb, chatReq)
		if ferr == nil {
			return &Outcome{Stream: stream}
		}
		o.logf("relay.chat fallback failed provider=%s err=%v", fb.Provider, ferr)
		return errorOutcome(http.StatusTooManyRequests, errRateLimited)
	}

	switch {
	case provider.IsStatus(err, http.StatusTooManyRequests):
		o.logf("relay.chat rate-limited provider=%s err=%v", cred.Provider, err)
		return errorOutcome(http.StatusTooManyRequests, errRateLimited)
	case provider.IsStatus(err, http.StatusPaymentRequired):
		o.logf("relay.chat payment-required provider=%s err=%v", cred.Provider, err)
		return errorOutcome(http.StatusPaymentRequired, errUnavailable)
	default:
		o.logf("relay.chat provider=%s err=%v", cred.Provider, err)
		return errorOutcome(http.StatusInternalServerError, errGeneric)
	}
}

func (o *Orchestrator) streamWith(ctx context.Context, cred credential.Credential, req provider.ChatRequest) (<-chan provider.StreamEvent, error) {
	p, err := o.factory(cred)
	if err != nil {
		return nil, err
	}
	return p.StreamChat(ctx, req)
}

// fallbackCredential derives the lower-tier provider/model pair for the
// single retry, honouring any configured route overrides.
func (o *Orchestrator) fallbackCredential(cred credential.Credential) credential.Credential {
	fb := credential.LowTier(cred)
	if o.fallback.Provider != "" {
		fb.Provider = o.fallback.Provider
		fb.Endpoint = credential.Defaults(fb.Provider).Endpoint
		fb.Model = credential.Defaults(fb.Provider).LowTierModel
	}
	if o.fallback.APIKey != "" {
		fb.APIKey = o.fallback.APIKey
	}
	if o.fallback.Endpoint != "" {
		fb.Endpoint = o.fallback.Endpoint
	}
	if o.fallback.Model != "" {
		fb.Model = o.fallback.Model
	}
	return fb
}
