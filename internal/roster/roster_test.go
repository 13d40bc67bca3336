package roster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testParticipant() Participant {
	return Participant{
		PaperID:      1,
		Email:        "a@x.com",
		Name:         "A B",
		PaperTitle:   "T",
		Salt:         "s",
		PasswordHash: HashPassword("s", "p"),
	}
}

func TestVerifySuccess(t *testing.T) {
	r, err := New([]Participant{testParticipant()})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	got, err := r.Verify(1, "a@x.com", "p")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Name != "A B" {
		t.Fatalf("expected participant A B, got %q", got.Name)
	}
}

func TestVerifyEmailCaseInsensitive(t *testing.T) {
	r, err := New([]Participant{testParticipant()})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	if _, err := r.Verify(1, "A@X.com", "p"); err != nil {
		t.Fatalf("expected case-insensitive match, got %v", err)
	}
}

func TestVerifyFailuresIndistinguishable(t *testing.T) {
	r, err := New([]Participant{testParticipant()})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	cases := []struct {
		name     string
		paperID  int
		email    string
		password string
	}{
		{"wrong password", 1, "a@x.com", "wrong"},
		{"wrong email", 1, "b@x.com", "p"},
		{"wrong paper id", 2, "a@x.com", "p"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Verify(tc.paperID, tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestFind(t *testing.T) {
	r, err := New([]Participant{testParticipant()})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	if _, ok := r.Find(1, "A@X.COM"); !ok {
		t.Fatal("expected case-insensitive find")
	}
	if _, ok := r.Find(2, "a@x.com"); ok {
		t.Fatal("expected miss for unknown paper id")
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	first := testParticipant()
	second := testParticipant()
	second.Email = "A@X.COM"

	if _, err := New([]Participant{first, second}); err == nil {
		t.Fatal("expected duplicate participant error")
	}
}

func TestNewRejectsEmptyEmail(t *testing.T) {
	p := testParticipant()
	p.Email = "   "
	if _, err := New([]Participant{p}); err == nil {
		t.Fatal("expected empty email error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	body := `[
  {
    "email": "a@x.com",
    "name": "A B",
    "paperId": 1,
    "paperTitle": "T",
    "passwordHash": "` + HashPassword("s", "p") + `",
    "salt": "s"
  }
]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write roster file: %v", err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 participant, got %d", r.Len())
	}
	if _, err := r.Verify(1, "a@x.com", "p"); err != nil {
		t.Fatalf("verify loaded participant: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatalf("write roster file: %v", err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected error for malformed json")
		}
	})
}

func TestHashPasswordMatchesKnownVector(t *testing.T) {
	// sha1("sp") – salt "s" concatenated with password "p".
	const want = "e8c5e5be4d4926e3acc74ed8dd3beb18fa6b1593"
	if got := HashPassword("s", "p"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
