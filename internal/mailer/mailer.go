// Package mailer sends credential emails to participants over SMTP.
package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/openconf/paperdrop/internal/credentials"
)

// Config is the operator-supplied mailer configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Subject  string `yaml:"subject"`

	// UploadURL and Deadline are interpolated into the message body.
	UploadURL string `yaml:"upload_url"`
	Deadline  string `yaml:"deadline"`
}

// LoadConfig reads and validates a YAML mailer configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read mailer config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode mailer config: %w", err)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return Config{}, fmt.Errorf("mailer host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return Config{}, fmt.Errorf("mailer from address is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = "Upload your conference paper"
	}
	return cfg, nil
}

// bodyTemplate is the plain-text credential message.
var bodyTemplate = template.Must(template.New("credentials").Parse(`Dear {{.Name}},

Your paper "{{.PaperTitle}}" (paper #{{.PaperID}}) has been accepted.
Please upload the final version at:

  {{.UploadURL}}

Sign in with:

  Paper ID: {{.PaperID}}
  Email:    {{.Email}}
  Password: {{.Password}}

The submission deadline is {{.Deadline}}. After uploading, remember to
confirm your submission; a confirmed submission can no longer be changed.

Kind regards,
The organising committee
`))

// bodyData feeds the message template.
type bodyData struct {
	Name       string
	PaperTitle string
	PaperID    int
	Email      string
	Password   string
	UploadURL  string
	Deadline   string
}

// Mailer sends credential emails. The send function is injectable for tests.
type Mailer struct {
	cfg  Config
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a mailer over net/smtp.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Render produces the full message, headers included, for one recipient.
func (m *Mailer) Render(c credentials.Credential) ([]byte, error) {
	var body strings.Builder
	err := bodyTemplate.Execute(&body, bodyData{
		Name:       c.Name,
		PaperTitle: c.PaperTitle,
		PaperID:    c.PaperID,
		Email:      c.Email,
		Password:   c.Password,
		UploadURL:  m.cfg.UploadURL,
		Deadline:   m.cfg.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("render message body: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", c.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", m.cfg.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())
	return []byte(msg.String()), nil
}

// Send delivers the credential email for one participant.
func (m *Mailer) Send(c credentials.Credential) error {
	msg, err := m.Render(c)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{c.Email}, msg); err != nil {
		return fmt.Errorf("send to %s: %w", c.Email, err)
	}
	return nil
}
