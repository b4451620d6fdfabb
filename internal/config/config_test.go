package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q, want 8080", cfg.APIPort)
	}
	if cfg.EmbedBatchSize != 12 {
		t.Errorf("EmbedBatchSize = %d, want 12", cfg.EmbedBatchSize)
	}
	if cfg.QueryRRFConstant != 60 {
		t.Errorf("QueryRRFConstant = %d, want 60", cfg.QueryRRFConstant)
	}
	if cfg.QueryMode != "hybrid" {
		t.Errorf("QueryMode = %q, want hybrid", cfg.QueryMode)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9000")
	t.Setenv("EMBED_BATCH_SIZE", "4")
	t.Setenv("QUERY_MIN_SCORE", "0.55")
	t.Setenv("QUERY_MODE", "vector")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q, want 9000", cfg.APIPort)
	}
	if cfg.EmbedBatchSize != 4 {
		t.Errorf("EmbedBatchSize = %d, want 4", cfg.EmbedBatchSize)
	}
	if cfg.QueryMinScore != 0.55 {
		t.Errorf("QueryMinScore = %v, want 0.55", cfg.QueryMinScore)
	}
	if cfg.QueryMode != "vector" {
		t.Errorf("QueryMode = %q, want vector", cfg.QueryMode)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("EMBED_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.EmbedBatchSize != 12 {
		t.Errorf("EmbedBatchSize = %d, want default 12", cfg.EmbedBatchSize)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "api_port: \"7070\"\nquery_top_k: 8\nembedding_model: custom-embed\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIPort != "7070" {
		t.Errorf("APIPort = %q, want 7070", cfg.APIPort)
	}
	if cfg.QueryTopK != 8 {
		t.Errorf("QueryTopK = %d, want 8", cfg.QueryTopK)
	}
	if cfg.EmbeddingModel != "custom-embed" {
		t.Errorf("EmbeddingModel = %q, want custom-embed", cfg.EmbeddingModel)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api_port: \"7070\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("API_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIPort != "6060" {
		t.Errorf("APIPort = %q, want 6060", cfg.APIPort)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
