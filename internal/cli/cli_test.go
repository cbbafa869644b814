package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iq-test-service/internal/auth"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "log:\n  mode: prod\nauth:\n  jwt_secret: cli-secret\n  issuer: iq\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "token", "user-42"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	userID, err := auth.NewVerifier("cli-secret", "iq").Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("expected user-42, got %s", userID)
	}
}

func TestSampleCatalogIsValid(t *testing.T) {
	file := sampleCatalog()
	for _, test := range file.Tests {
		if err := test.Validate(); err != nil {
			t.Fatalf("sample test: %v", err)
		}
	}
	for _, q := range file.Questions {
		if err := q.Validate(); err != nil {
			t.Fatalf("sample question: %v", err)
		}
	}
}

func TestStaticCatalogFromSeed(t *testing.T) {
	file, err := staticCatalogFile(filepath.Join("..", "..", "config", "catalog.yaml"))
	if err != nil {
		t.Fatalf("read bundled catalog: %v", err)
	}
	if len(file.Tests) == 0 || len(file.Questions) == 0 {
		t.Fatalf("bundled catalog is empty")
	}
}
