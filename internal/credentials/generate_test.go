package credentials

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openconf/paperdrop/internal/roster"
)

const participantsCSV = `paperId,name,email,paperTitle
1,A B,a@x.com,T
2,C D,c@x.com,Another Title
`

// fixedRandom returns deterministic strings for stable assertions.
func fixedRandom(n int) (string, error) {
	return strings.Repeat("r", n), nil
}

func TestGenerate(t *testing.T) {
	credentials, err := Generate(strings.NewReader(participantsCSV), fixedRandom)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(credentials))
	}

	first := credentials[0]
	if first.PaperID != 1 || first.Email != "a@x.com" || first.Name != "A B" || first.PaperTitle != "T" {
		t.Fatalf("unexpected participant %+v", first.Participant)
	}
	if len(first.Password) != passwordLength {
		t.Fatalf("expected %d-char password, got %q", passwordLength, first.Password)
	}
	if len(first.Salt) != saltLength {
		t.Fatalf("expected %d-char salt, got %q", saltLength, first.Salt)
	}
	if first.PasswordHash != roster.HashPassword(first.Salt, first.Password) {
		t.Fatal("expected hash of salt+password")
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		csv := "paperId,name,email\n1,A,a@x.com\n"
		if _, err := Generate(strings.NewReader(csv), fixedRandom); err == nil {
			t.Fatal("expected missing column error")
		}
	})

	t.Run("bad paper id", func(t *testing.T) {
		csv := "paperId,name,email,paperTitle\nnope,A,a@x.com,T\n"
		if _, err := Generate(strings.NewReader(csv), fixedRandom); err == nil {
			t.Fatal("expected paper id error")
		}
	})

	t.Run("empty email", func(t *testing.T) {
		csv := "paperId,name,email,paperTitle\n1,A, ,T\n"
		if _, err := Generate(strings.NewReader(csv), fixedRandom); err == nil {
			t.Fatal("expected empty email error")
		}
	})
}

func TestRandomString(t *testing.T) {
	value, err := RandomString(32)
	if err != nil {
		t.Fatalf("random string: %v", err)
	}
	if len(value) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(value))
	}
	for _, r := range value {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("unexpected character %q", r)
		}
	}

	other, err := RandomString(32)
	if err != nil {
		t.Fatalf("random string: %v", err)
	}
	if value == other {
		t.Fatal("expected distinct random strings")
	}
}

func TestWriteCredentialsCSV(t *testing.T) {
	credentials, err := Generate(strings.NewReader(participantsCSV), fixedRandom)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCredentialsCSV(&buf, credentials); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "name,email,paperTitle,password,salt,passwordHash" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "a@x.com") || !strings.Contains(lines[1], credentials[0].Password) {
		t.Fatalf("expected credential details in row %q", lines[1])
	}
}

func TestWriteRosterJSONOmitsPassword(t *testing.T) {
	credentials, err := Generate(strings.NewReader(participantsCSV), fixedRandom)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteRosterJSON(&buf, credentials); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	if strings.Contains(buf.String(), `"Password"`) {
		t.Fatal("plaintext password must not reach the roster file")
	}

	var participants []roster.Participant
	if err := json.Unmarshal(buf.Bytes(), &participants); err != nil {
		t.Fatalf("decode roster json: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if participants[0].PasswordHash == "" || participants[0].Salt == "" {
		t.Fatal("expected hash and salt in roster")
	}

	table, err := roster.New(participants)
	if err != nil {
		t.Fatalf("roster from generated file: %v", err)
	}
	if _, err := table.Verify(1, "a@x.com", credentials[0].Password); err != nil {
		t.Fatalf("generated credentials should verify: %v", err)
	}
}
