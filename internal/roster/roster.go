// Package roster holds the registered participants and verifies their
// credentials.
//
// The roster is loaded once at process start from a JSON credential file and
// is immutable afterwards. It is constructed explicitly and injected into its
// consumers so tests can swap it freely.
package roster

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/openconf/paperdrop/internal/platform/errors"
)

// ErrInvalidCredentials is returned for every authentication failure. An
// unknown identity and a wrong password are deliberately the same error so
// callers cannot probe which identities exist.
var ErrInvalidCredentials = apperrors.E(apperrors.KindUnauthorized, apperrors.CodeInvalidAuth, "invalid credentials")

// Participant is one registered identity and credential record.
type Participant struct {
	PaperID      int    `json:"paperId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PaperTitle   string `json:"paperTitle"`
	Salt         string `json:"salt"`
	PasswordHash string `json:"passwordHash"`
}

// key identifies a participant. Emails are compared case-insensitively.
type key struct {
	paperID int
	email   string
}

func keyFor(paperID int, email string) key {
	return key{paperID: paperID, email: strings.ToLower(strings.TrimSpace(email))}
}

// Roster is an immutable lookup table of participants.
type Roster struct {
	participants map[key]Participant
}

// New builds a roster from participant records. Duplicate (paperId, email)
// pairs are rejected.
func New(participants []Participant) (*Roster, error) {
	table := make(map[key]Participant, len(participants))
	for _, p := range participants {
		k := keyFor(p.PaperID, p.Email)
		if k.email == "" {
			return nil, fmt.Errorf("participant %q has no email", p.Name)
		}
		if _, exists := table[k]; exists {
			return nil, fmt.Errorf("duplicate participant %d/%s", p.PaperID, k.email)
		}
		table[k] = p
	}
	return &Roster{participants: table}, nil
}

// LoadFile reads a JSON credential file and builds a roster from it.
func LoadFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	var participants []Participant
	if err := json.Unmarshal(data, &participants); err != nil {
		return nil, fmt.Errorf("decode roster file: %w", err)
	}
	return New(participants)
}

// Len reports the number of registered participants.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.participants)
}

// Find returns the participant for a verified (paperId, email) identity.
// It performs no credential check; callers use it to rehydrate an identity
// the session layer already authenticated.
func (r *Roster) Find(paperID int, email string) (Participant, bool) {
	if r == nil {
		return Participant{}, false
	}
	p, ok := r.participants[keyFor(paperID, email)]
	return p, ok
}

// Verify checks a credential triple against the roster. On success it returns
// the matching participant; every failure returns ErrInvalidCredentials.
func (r *Roster) Verify(paperID int, email, password string) (Participant, error) {
	if r == nil {
		return Participant{}, ErrInvalidCredentials
	}

	p, ok := r.participants[keyFor(paperID, email)]
	// Compare against a dummy record when the identity is unknown so lookup
	// misses take the same time as password mismatches.
	salt, want := p.Salt, p.PasswordHash
	if !ok {
		salt, want = "", strings.Repeat("0", 40)
	}

	got := HashPassword(salt, password)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 || !ok {
		return Participant{}, ErrInvalidCredentials
	}
	return p, nil
}

// HashPassword computes the stored credential hash: hex(sha1(salt + password)).
func HashPassword(salt, password string) string {
	sum := sha1.Sum([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}
