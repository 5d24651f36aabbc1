package chat

import "strings"

// Message roles used across the relay.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Mode selects a system prompt template and per-mode feature flags.
type Mode string

const (
	ModeCode       Mode = "tobigpt"
	ModeTalk       Mode = "rozhovor"
	ModeImage      Mode = "genob"
	ModeVideo      Mode = "video"
	ModePentest    Mode = "pentest"
	ModeVoice      Mode = "voice"
	ModeMediaGen   Mode = "mediagen"
	ModeTestSolver Mode = "riesittest"
)

// Modes lists every recognised mode tag.
var Modes = []Mode{ModeCode, ModeTalk, ModeImage, ModeVideo, ModePentest, ModeVoice, ModeMediaGen, ModeTestSolver}

// Valid reports whether the tag is one of the fixed mode set.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// AllowsWebSearch reports whether the mode may inject web search results.
func (m Mode) AllowsWebSearch() bool {
	return m == ModeCode || m == ModeTalk
}

// AllowsImageOutput reports whether the mode produces generated images.
func (m Mode) AllowsImageOutput() bool {
	return m == ModeImage || m == ModeMediaGen
}

// Elevated reports whether the mode prefers the higher-tier model of a provider.
func (m Mode) Elevated() bool {
	return m == ModePentest || m == ModeTestSolver
}

// RelayRequest is the transient value object built per relay call.
// It is never persisted by the relay itself.
type RelayRequest struct {
	Messages    []Message `json:"messages"`
	Mode        Mode      `json:"mode"`
	ImageBase64 string    `json:"imageBase64,omitempty"`

	// Optional caller-supplied credential override. When UserAPIKey is set the
	// stored credential store is bypassed entirely.
	UserAPIKey      string `json:"userApiKey,omitempty"`
	UserAPIEndpoint string `json:"userApiEndpoint,omitempty"`
	UserAPIModel    string `json:"userApiModel,omitempty"`
	UserProvider    string `json:"userProvider,omitempty"`
}

// LastUserMessage returns the content of the newest user turn, or "".
func (r RelayRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// LastUserMessageLower is LastUserMessage lower-cased, for keyword heuristics.
func (r RelayRequest) LastUserMessageLower() string {
	return strings.ToLower(r.LastUserMessage())
}

// BlockResult is the structured payload returned when moderation trips.
type BlockResult struct {
	Blocked bool   `json:"blocked"`
	Message string `json:"message"`
}

// ErrorResult carries a user-facing error string.
type ErrorResult struct {
	Error string `json:"error"`
}

// ImageResult carries a generated image reference.
type ImageResult struct {
	Image   string `json:"image"`
	Message string `json:"message"`
}

// GeneratingResult signals a long-running generation the client should wait on.
type GeneratingResult struct {
	Generating string `json:"generating"`
	Prompt     string `json:"prompt"`
	Message    string `json:"message"`
}
