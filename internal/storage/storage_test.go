package storage

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
)

func TestNewKeyLayout(t *testing.T) {
	owner := uuid.MustParse("7f9c2b1e-4d3a-4f5b-9c8d-1a2b3c4d5e6f")
	pattern := regexp.MustCompile(`^7f9c2b1e-4d3a-4f5b-9c8d-1a2b3c4d5e6f/[0-9a-f]{8}_nota\.pdf$`)

	tests := []struct {
		name     string
		filename string
	}{
		{name: "plain", filename: "nota.pdf"},
		{name: "nested path", filename: "uploads/2026/nota.pdf"},
		{name: "windows path", filename: `C:\Users\mei\nota.pdf`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey(owner, tt.filename)
			if !pattern.MatchString(key) {
				t.Fatalf("unexpected key %q", key)
			}
		})
	}
}

func TestNewKeyIsUnique(t *testing.T) {
	owner := uuid.New()
	if NewKey(owner, "a.pdf") == NewKey(owner, "a.pdf") {
		t.Fatalf("expected distinct keys for repeated uploads")
	}
}

func TestEndpointURL(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"localhost:9000":     "http://localhost:9000",
		"https://minio.test": "https://minio.test",
	}
	for in, want := range tests {
		if got := endpointURL(in); got != want {
			t.Fatalf("endpointURL(%q) = %q, want %q", in, got, want)
		}
	}
}
