package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/config"
	"github.com/lumichat/lumichat-relay/internal/credential"
	credentialpg "github.com/lumichat/lumichat-relay/internal/credential/postgres"
	credentialsqlite "github.com/lumichat/lumichat-relay/internal/credential/sqlite"
	historysqlite "github.com/lumichat/lumichat-relay/internal/history/sqlite"
	"github.com/lumichat/lumichat-relay/internal/httpserver"
	"github.com/lumichat/lumichat-relay/internal/logging"
	"github.com/lumichat/lumichat-relay/internal/moderation"
	"github.com/lumichat/lumichat-relay/internal/relay"
	"github.com/lumichat/lumichat-relay/internal/tts"
	"github.com/lumichat/lumichat-relay/internal/version"
	"github.com/lumichat/lumichat-relay/internal/websearch"
)

func main() {
	cfg, err := config.LoadRelayConfig(".")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Rotating file logging, mirrored to stdout for foreground runs
	const maxLogBytes = int64(300 * 1024 * 1024) // 300MB
	if logTarget := strings.TrimSpace(cfg.LogFile); logTarget != "" {
		rot, err := logging.NewRotatingWriter(logTarget, maxLogBytes)
		if err != nil {
			log.Fatalf("init rotating log: %v", err)
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rot))
		defer rot.Close()
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[relayd] ")

	log.Printf("lumichat relay %s env=%s", version.FullInfo(), cfg.Environment)

	ctx := context.Background()

	// Credential store: Postgres DSN wins when configured
	var credStore credential.Store
	if dsn := strings.TrimSpace(cfg.CredentialPGDSN); dsn != "" {
		credStore, err = credentialpg.New(dsn)
		if err != nil {
			log.Fatalf("open postgres credential store: %v", err)
		}
		log.Printf("credential store: postgres")
	} else {
		credStore, err = credentialsqlite.New(cfg.CredentialDBPath)
		if err != nil {
			log.Fatalf("open credential store: %v", err)
		}
		log.Printf("credential store: sqlite path=%s", cfg.CredentialDBPath)
	}
	defer credStore.Close()

	if err := seedCredential(ctx, credStore, cfg); err != nil {
		log.Printf("seed credential skipped: %v", err)
	}

	historyStore, err := historysqlite.New(cfg.HistoryDBPath)
	if err != nil {
		log.Fatalf("open history store: %v", err)
	}
	defer historyStore.Close()

	lists, err := moderation.LoadLists(cfg.ModerationFile)
	if err != nil {
		log.Fatalf("load moderation lists: %v", err)
	}
	filter := moderation.NewFilter(lists)
	if filter.Empty() {
		log.Printf("moderation lists empty; all prompts pass file=%s", cfg.ModerationFile)
	}

	var search *websearch.Client
	if strings.TrimSpace(cfg.FirecrawlAPIKey) != "" {
		search = websearch.New(websearch.Config{
			APIKey:  cfg.FirecrawlAPIKey,
			BaseURL: cfg.FirecrawlBaseURL,
			Limit:   cfg.WebSearchLimit,
		})
		search.SetLogger(log.New(log.Writer(), "[relayd/search] ", log.LstdFlags|log.Lmicroseconds))
	} else {
		log.Printf("web search disabled: no firecrawl api key")
	}

	var ttsClient *tts.Client
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
		ttsClient = tts.New(tts.Config{APIKey: cfg.ElevenLabsAPIKey})
	} else {
		log.Printf("voice synthesis disabled: no elevenlabs api key")
	}

	// Video rendering has no backing service; /v1/video-voice produces the
	// narration track only.
	log.Printf("video generation unavailable: requests produce a placeholder response")

	orchestrator := relay.New(relay.Config{
		Resolver:   credential.NewResolver(credStore),
		Moderation: filter,
		Search:     search,
		Factory:    relay.DefaultFactory(cfg.RequestTimeout),
		Fallback: relay.FallbackRoute{
			Provider: cfg.FallbackProvider,
			APIKey:   cfg.FallbackAPIKey,
			Endpoint: cfg.FallbackEndpoint,
			Model:    cfg.FallbackModel,
		},
		Logger: log.New(log.Writer(), "[relayd/relay] ", log.LstdFlags|log.Lmicroseconds),
	})

	httpSrv := httpserver.New(orchestrator, credStore, historyStore, ttsClient)
	httpSrv.SetLogger(cfg.LogLevel, log.New(log.Writer(), "[relayd/http] ", log.LstdFlags|log.Lmicroseconds))

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     httpSrv.Router(),
		ReadTimeout: 15 * time.Second,
		// Write timeout must cover a full provider stream.
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("relay server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	<-sigs

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// seedCredential inserts the configured seed credential on first run, when
// the store holds no credentials yet.
func seedCredential(ctx context.Context, store credential.Store, cfg config.RelayConfig) error {
	if strings.TrimSpace(cfg.SeedAPIKey) == "" {
		return nil
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	modes := make([]chat.Mode, 0, len(cfg.SeedModes))
	for _, raw := range cfg.SeedModes {
		m := chat.Mode(strings.TrimSpace(raw))
		if m.Valid() {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		modes = append(modes, chat.Modes...)
	}
	provider := strings.TrimSpace(cfg.SeedProvider)
	if provider == "" {
		provider = credential.ProviderOpenAI
	}
	created, err := store.Create(ctx, credential.Credential{
		Provider: provider,
		APIKey:   cfg.SeedAPIKey,
		Endpoint: cfg.SeedEndpoint,
		Model:    cfg.SeedModel,
		Modes:    modes,
		Active:   true,
	})
	if err != nil {
		return err
	}
	log.Printf("seeded credential id=%d provider=%s modes=%d", created.ID, created.Provider, len(created.Modes))
	return nil
}
