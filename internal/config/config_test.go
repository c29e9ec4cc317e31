package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("CHAT_TIMEOUT", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("MAX_UPLOAD_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Chat.Timeout != 60*time.Second {
		t.Fatalf("expected default chat timeout 60s, got %s", cfg.Chat.Timeout)
	}
	if cfg.Server.MaxUploadBytes != 32<<20 || len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Chat.TopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.Chat.TopK)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "fiscal-documents" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CHAT_TIMEOUT", "15s")
	t.Setenv("STORAGE_BACKEND", "LOCAL")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MAX_UPLOAD_SIZE", "5MiB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
	if cfg.Chat.Timeout != 15*time.Second {
		t.Fatalf("expected 15s, got %s", cfg.Chat.Timeout)
	}
	if cfg.Server.MaxUploadBytes != 5<<20 {
		t.Fatalf("expected 5MiB upload limit, got %d", cfg.Server.MaxUploadBytes)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("expected backend to be lowercased, got %q", cfg.Storage.Backend)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"WORKER_CONCURRENCY": "many",
		"MAX_UPLOAD_SIZE":    "huge",
		"CHAT_TIMEOUT":       "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Database: DatabaseConfig{URL: "postgres://localhost/db"},
				Auth:     AuthConfig{JWTSecret: "secret"},
				Storage:  StorageConfig{Backend: "s3"},
			},
		},
		{
			name:    "missing database and secret",
			cfg:     Config{Storage: StorageConfig{Backend: "s3"}},
			wantErr: true,
		},
		{
			name: "supabase without credentials",
			cfg: Config{
				Database: DatabaseConfig{URL: "postgres://localhost/db"},
				Auth:     AuthConfig{JWTSecret: "secret"},
				Storage:  StorageConfig{Backend: "supabase"},
			},
			wantErr: true,
		},
		{
			name: "unknown backend",
			cfg: Config{
				Database: DatabaseConfig{URL: "postgres://localhost/db"},
				Auth:     AuthConfig{JWTSecret: "secret"},
				Storage:  StorageConfig{Backend: "ftp"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
