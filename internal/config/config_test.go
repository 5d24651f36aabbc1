package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRelayConfig(t *testing.T) {
	tmp := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmp, "config", "dev"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	setting := "environment=dev\nlog_file=/tmp/base.log\nlog_level=debug\nfirecrawl_api_key=fc-base\n"
	if err := os.WriteFile(filepath.Join(tmp, "config", "setting.ini"), []byte(setting), 0o644); err != nil {
		t.Fatalf("write setting: %v", err)
	}
	content := "listen_addr=:9090\nlog_file=/tmp/env.log\ncredential_db=/tmp/creds.db\nhistory_db=/tmp/history.db\nrequest_timeout=90s\nseed_modes=tobigpt, rozhovor\n"
	if err := os.WriteFile(filepath.Join(tmp, "config", "dev", "relay.ini"), []byte(content), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}
	os.Setenv("LUMICHAT_FIRECRAWL_API_KEY", "fc-env")
	t.Cleanup(func() { os.Unsetenv("LUMICHAT_FIRECRAWL_API_KEY") })

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("unexpected listen addr %s", cfg.ListenAddr)
	}
	if cfg.LogFile != "/tmp/env.log" {
		t.Fatalf("unexpected log file %s", cfg.LogFile)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from base config, got %s", cfg.LogLevel)
	}
	if cfg.CredentialDBPath != "/tmp/creds.db" {
		t.Fatalf("unexpected credential db %s", cfg.CredentialDBPath)
	}
	if cfg.HistoryDBPath != "/tmp/history.db" {
		t.Fatalf("unexpected history db %s", cfg.HistoryDBPath)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.RequestTimeout)
	}
	if cfg.FirecrawlAPIKey != "fc-env" {
		t.Fatalf("env override for firecrawl key not applied: %s", cfg.FirecrawlAPIKey)
	}
	if len(cfg.SeedModes) != 2 || cfg.SeedModes[0] != "tobigpt" || cfg.SeedModes[1] != "rozhovor" {
		t.Fatalf("unexpected seed modes %#v", cfg.SeedModes)
	}
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	tmp := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmp, "config", "dev"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "config", "dev", "relay.ini"), []byte(""), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("expected dev environment, got %s", cfg.Environment)
	}
	if cfg.ListenAddr != "127.0.0.1:8090" {
		t.Fatalf("expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.WebSearchLimit != 5 {
		t.Fatalf("expected default web search limit 5, got %d", cfg.WebSearchLimit)
	}
	if cfg.RequestTimeout != 120*time.Second {
		t.Fatalf("expected default request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.CredentialDBPath != DefaultCredentialPath() {
		t.Fatalf("expected default credential path %s, got %s", DefaultCredentialPath(), cfg.CredentialDBPath)
	}
	if cfg.HistoryDBPath != DefaultHistoryPath() {
		t.Fatalf("expected default history path %s, got %s", DefaultHistoryPath(), cfg.HistoryDBPath)
	}
}

func TestLoadRelayConfigInvalidTimeout(t *testing.T) {
	tmp := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmp, "config", "dev"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "config", "dev", "relay.ini"), []byte("request_timeout=not-a-duration\n"), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}

	if _, err := LoadRelayConfig(tmp); err == nil {
		t.Fatalf("expected error for invalid request timeout")
	}
}
