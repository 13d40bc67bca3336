// Package slot derives the storage location name owned by a participant.
//
// A slot name is used both as a directory name and as the document's file
// stem, so it must be safe across common filesystems. The readable part is a
// sanitized join of the participant's identity fields; a short digest of the
// raw fields is appended so two participants whose sanitized fields collide
// (or a crafted name embedding the separator) still resolve to distinct
// slots.
package slot

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/openconf/paperdrop/internal/roster"
)

// separator joins the identity fields inside a slot name.
const separator = " - "

// digestLen is the number of hex characters kept from the field digest.
const digestLen = 8

// Resolve derives the slot name for a participant. It is deterministic:
// the same participant always resolves to the same name.
func Resolve(p roster.Participant) string {
	parts := []string{
		sanitize(p.Name),
		strconv.Itoa(p.PaperID),
		sanitize(p.PaperTitle),
	}
	return strings.Join(parts, separator) + separator + digest(p)
}

// sanitize strips every character outside [A-Za-z0-9 -] from a field.
func sanitize(field string) string {
	var b strings.Builder
	b.Grow(len(field))
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == ' ', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// digest hashes the raw, unsanitized identity fields. The NUL joins cannot
// appear in field values, so distinct field tuples never share a digest input.
func digest(p roster.Participant) string {
	h := blake3.New()
	h.Write([]byte(p.Name))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(p.PaperID)))
	h.Write([]byte{0})
	h.Write([]byte(p.PaperTitle))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:digestLen]
}
