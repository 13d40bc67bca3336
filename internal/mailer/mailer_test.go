package mailer

import (
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openconf/paperdrop/internal/credentials"
	"github.com/openconf/paperdrop/internal/roster"
)

func testCredential() credentials.Credential {
	return credentials.Credential{
		Participant: roster.Participant{
			PaperID:    1,
			Email:      "a@x.com",
			Name:       "A B",
			PaperTitle: "T",
		},
		Password: "hunter2hun",
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailer.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
host: smtp.example.org
port: 2525
username: mailer
password: pw
from: papers@example.org
subject: "Upload your paper"
upload_url: https://papers.example.org
deadline: 1 August 2014
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "smtp.example.org" || cfg.Port != 2525 {
		t.Fatalf("unexpected server config %+v", cfg)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
host: smtp.example.org
from: papers@example.org
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 587 {
		t.Fatalf("expected default port 587, got %d", cfg.Port)
	}
	if cfg.Subject == "" {
		t.Fatal("expected default subject")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		path := writeConfig(t, "from: papers@example.org\n")
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected missing host error")
		}
	})
	t.Run("missing from", func(t *testing.T) {
		path := writeConfig(t, "host: smtp.example.org\n")
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected missing from error")
		}
	})
	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "host: [unclosed\n")
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected yaml error")
		}
	})
}

func TestRenderIncludesCredentials(t *testing.T) {
	m := New(Config{
		Host:      "smtp.example.org",
		From:      "papers@example.org",
		Subject:   "Upload your paper",
		UploadURL: "https://papers.example.org",
		Deadline:  "1 August 2014",
	})

	msg, err := m.Render(testCredential())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	text := string(msg)
	for _, want := range []string{
		"To: a@x.com",
		"Subject: Upload your paper",
		"Dear A B,",
		`"T" (paper #1)`,
		"Password: hunter2hun",
		"https://papers.example.org",
		"1 August 2014",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in message:\n%s", want, text)
		}
	}
}

func TestSendUsesInjectedTransport(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	m := New(Config{Host: "smtp.example.org", Port: 2525, From: "papers@example.org"})
	m.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		return nil
	}

	if err := m.Send(testCredential()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.org:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "papers@example.org" || len(gotTo) != 1 || gotTo[0] != "a@x.com" {
		t.Fatalf("unexpected envelope %q %v", gotFrom, gotTo)
	}
}

func TestSendWrapsTransportError(t *testing.T) {
	m := New(Config{Host: "smtp.example.org", From: "papers@example.org"})
	cause := errors.New("connection refused")
	m.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		return cause
	}

	err := m.Send(testCredential())
	if err == nil || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "a@x.com") {
		t.Fatalf("expected recipient in error, got %v", err)
	}
}
