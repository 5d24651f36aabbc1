package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/relay.ini"
)

// Settings contains global toggles such as the active environment.
type Settings struct {
	Environment string
	Defaults    map[string]string
}

// RelayConfig describes runtime options for the relay daemon.
type RelayConfig struct {
	Environment string

	ListenAddr string
	LogFile    string
	LogLevel   string

	// Credential store: Postgres DSN wins over the SQLite path when both
	// are set.
	CredentialDBPath string
	CredentialPGDSN  string
	HistoryDBPath    string

	ModerationFile string

	// Web search (Firecrawl)
	FirecrawlAPIKey  string
	FirecrawlBaseURL string
	WebSearchLimit   int

	// Voice synthesis (ElevenLabs)
	ElevenLabsAPIKey string

	// Upstream request budget applied to provider calls.
	RequestTimeout time.Duration

	// Optional route overrides for the single rate-limit fallback attempt.
	FallbackProvider string
	FallbackAPIKey   string
	FallbackEndpoint string
	FallbackModel    string

	// First-run seed credential, applied only when the store is empty.
	SeedProvider string
	SeedAPIKey   string
	SeedEndpoint string
	SeedModel    string
	SeedModes    []string
}

// LoadRelayConfig reads the current environment and loads the appropriate
// relay config file, with LUMICHAT_* environment variables taking precedence.
func LoadRelayConfig(root string) (RelayConfig, error) {
	if root == "" {
		root = "."
	}
	s, err := loadSettings(root)
	if err != nil {
		return RelayConfig{}, err
	}

	envValues, err := parseINI(filepath.Join(root, fmt.Sprintf(envConfigPattern, s.Environment)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			envValues = map[string]string{}
		} else {
			return RelayConfig{}, err
		}
	}

	merged := make(map[string]string)
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range envValues {
		merged[k] = v
	}

	cfg := RelayConfig{
		Environment:      s.Environment,
		ListenAddr:       firstNonEmpty(os.Getenv("LUMICHAT_LISTEN_ADDR"), merged["listen_addr"], "127.0.0.1:8090"),
		LogFile:          firstNonEmpty(os.Getenv("LUMICHAT_LOG_FILE"), merged["log_file"]),
		LogLevel:         firstNonEmpty(os.Getenv("LUMICHAT_LOG_LEVEL"), merged["log_level"], "info"),
		CredentialDBPath: firstNonEmpty(os.Getenv("LUMICHAT_CREDENTIAL_DB"), merged["credential_db"], DefaultCredentialPath()),
		CredentialPGDSN:  firstNonEmpty(os.Getenv("LUMICHAT_CREDENTIAL_PG_DSN"), merged["credential_pg_dsn"]),
		HistoryDBPath:    firstNonEmpty(os.Getenv("LUMICHAT_HISTORY_DB"), merged["history_db"], DefaultHistoryPath()),
		ModerationFile:   firstNonEmpty(os.Getenv("LUMICHAT_MODERATION_FILE"), merged["moderation_file"], "config/moderation.yaml"),
		FirecrawlAPIKey:  firstNonEmpty(os.Getenv("LUMICHAT_FIRECRAWL_API_KEY"), merged["firecrawl_api_key"]),
		FirecrawlBaseURL: firstNonEmpty(os.Getenv("LUMICHAT_FIRECRAWL_BASE_URL"), merged["firecrawl_base_url"]),
		WebSearchLimit:   parseOptionalInt(firstNonEmpty(os.Getenv("LUMICHAT_WEB_SEARCH_LIMIT"), merged["web_search_limit"]), 5),
		ElevenLabsAPIKey: firstNonEmpty(os.Getenv("LUMICHAT_ELEVENLABS_API_KEY"), merged["elevenlabs_api_key"]),
		FallbackProvider: firstNonEmpty(os.Getenv("LUMICHAT_FALLBACK_PROVIDER"), merged["fallback_provider"]),
		FallbackAPIKey:   firstNonEmpty(os.Getenv("LUMICHAT_FALLBACK_API_KEY"), merged["fallback_api_key"]),
		FallbackEndpoint: firstNonEmpty(os.Getenv("LUMICHAT_FALLBACK_ENDPOINT"), merged["fallback_endpoint"]),
		FallbackModel:    firstNonEmpty(os.Getenv("LUMICHAT_FALLBACK_MODEL"), merged["fallback_model"]),
		SeedProvider:     firstNonEmpty(os.Getenv("LUMICHAT_SEED_PROVIDER"), merged["seed_provider"]),
		SeedAPIKey:       firstNonEmpty(os.Getenv("LUMICHAT_SEED_API_KEY"), merged["seed_api_key"]),
		SeedEndpoint:     firstNonEmpty(os.Getenv("LUMICHAT_SEED_ENDPOINT"), merged["seed_endpoint"]),
		SeedModel:        firstNonEmpty(os.Getenv("LUMICHAT_SEED_MODEL"), merged["seed_model"]),
		SeedModes:        parseCSV(firstNonEmpty(os.Getenv("LUMICHAT_SEED_MODES"), merged["seed_modes"])),
	}

	if v := firstNonEmpty(os.Getenv("LUMICHAT_REQUEST_TIMEOUT"), merged["request_timeout"]); strings.TrimSpace(v) != "" {
		dur, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return RelayConfig{}, fmt.Errorf("invalid request_timeout %q: %w", v, err)
		}
		cfg.RequestTimeout = dur
	} else {
		cfg.RequestTimeout = 120 * time.Second
	}

	return cfg, nil
}

func loadSettings(root string) (Settings, error) {
	values, err := parseINI(filepath.Join(root, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{Environment: defaultEnv, Defaults: map[string]string{}}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	env := values["environment"]
	if env == "" {
		env = defaultEnv
	}
	defaults := make(map[string]string)
	for k, v := range values {
		if k == "environment" {
			continue
		}
		defaults[k] = v
	}
	return Settings{Environment: env, Defaults: defaults}, nil
}

func parseINI(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func parseOptionalInt(v string, fallback int) int {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return parsed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseCSV(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DefaultCredentialPath returns the fallback credential database location
// under the user's home directory.
func DefaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.db"
	}
	return filepath.Join(home, ".lumichat", "credentials.db")
}

// DefaultHistoryPath returns the fallback conversation database path.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".lumichat", "history.db")
}
