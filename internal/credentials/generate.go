// Package credentials generates per-participant login credentials from a
// participants CSV, producing the credential sheet for organisers and the
// roster file the server loads.
package credentials

import (
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/openconf/paperdrop/internal/roster"
)

// passwordLength and saltLength match the credential sheet format
// participants already received in earlier editions.
const (
	passwordLength = 10
	saltLength     = 30
)

// alphabet is the character set for generated passwords and salts.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Credential pairs a roster record with its plaintext password. The password
// exists only in the credential sheet; the roster stores the salted hash.
type Credential struct {
	roster.Participant
	Password string
}

// RandomString returns n characters drawn uniformly from the alphabet.
func RandomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw random character: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Generate reads a participants CSV (columns paperId, name, email,
// paperTitle; header row required) and produces one credential per row.
// randomString may be nil, in which case RandomString is used.
func Generate(r io.Reader, randomString func(int) (string, error)) ([]Credential, error) {
	if randomString == nil {
		randomString = RandomString
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"paperId", "name", "email", "paperTitle"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("participants csv is missing column %q", required)
		}
	}

	var credentials []Credential
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		paperID, err := strconv.Atoi(strings.TrimSpace(record[columns["paperId"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid paperId %q", line, record[columns["paperId"]])
		}
		email := strings.TrimSpace(record[columns["email"]])
		if email == "" {
			return nil, fmt.Errorf("line %d: empty email", line)
		}

		password, err := randomString(passwordLength)
		if err != nil {
			return nil, err
		}
		salt, err := randomString(saltLength)
		if err != nil {
			return nil, err
		}

		credentials = append(credentials, Credential{
			Participant: roster.Participant{
				PaperID:      paperID,
				Email:        email,
				Name:         strings.TrimSpace(record[columns["name"]]),
				PaperTitle:   strings.TrimSpace(record[columns["paperTitle"]]),
				Salt:         salt,
				PasswordHash: roster.HashPassword(salt, password),
			},
			Password: password,
		})
	}
	return credentials, nil
}

// WriteCredentialsCSV writes the organiser credential sheet.
func WriteCredentialsCSV(w io.Writer, credentials []Credential) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "email", "paperTitle", "password", "salt", "passwordHash"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range credentials {
		record := []string{c.Name, c.Email, c.PaperTitle, c.Password, c.Salt, c.PasswordHash}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteRosterJSON writes the roster file the server loads at startup. The
// plaintext password never reaches the roster.
func WriteRosterJSON(w io.Writer, credentials []Credential) error {
	participants := make([]roster.Participant, 0, len(credentials))
	for _, c := range credentials {
		participants = append(participants, c.Participant)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(participants); err != nil {
		return fmt.Errorf("encode roster json: %w", err)
	}
	return nil
}
