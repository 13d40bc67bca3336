// Package submission persists uploaded documents and the confirm-lock that
// makes them immutable.
//
// Each slot owns one directory under the configured root:
//
//	<root>/<slot>/<slot>.<ext>      the single document
//	<root>/<slot>/confirmed.txt     the lock marker
//
// Operations on the same slot are serialized by an in-process keyed mutex so
// an upload can never interleave with a confirmation for that slot. Different
// slots never contend.
package submission

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/openconf/paperdrop/internal/platform/errors"
)

// lockMarkerName is the file whose presence makes a slot CONFIRMED.
const lockMarkerName = "confirmed.txt"

// State is the lifecycle position of a slot.
type State string

const (
	StateEmpty     State = "EMPTY"
	StateSubmitted State = "SUBMITTED"
	StateConfirmed State = "CONFIRMED"
)

// Status reports a slot's state and, when a document or marker exists, its
// last modification time.
type Status struct {
	State        State
	LastModified time.Time
}

// Upload carries one incoming document and the consent flag from the request.
type Upload struct {
	Filename string
	Size     int64
	File     io.Reader
	Consent  bool
}

// Document locates a stored file for streaming back to the caller.
type Document struct {
	Path        string
	Filename    string
	ContentType string
}

// Config defines the inputs for a submission store.
type Config struct {
	// Root is the directory that holds all slot directories.
	Root string

	// AllowedExtensions lists acceptable document extensions,
	// e.g. ".pdf", ".docx". Matching is case-insensitive.
	AllowedExtensions []string

	// MaxBytes caps the stored document size.
	MaxBytes int64

	// FormatTime renders the confirmation timestamp written into the lock
	// marker. Timestamp presentation stays a boundary concern; the store
	// only records what it is given.
	FormatTime func(time.Time) string

	// Now is the clock used for the confirmation timestamp.
	Now func() time.Time
}

// Store implements the submission lifecycle over a filesystem root.
type Store struct {
	root       string
	allowed    []string
	maxBytes   int64
	formatTime func(time.Time) string
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New validates the configuration and builds a store. The root directory is
// created when absent.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("submission root is required")
	}
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("at least one allowed extension is required")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}

	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed = append(allowed, ext)
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("at least one allowed extension is required")
	}

	if cfg.FormatTime == nil {
		cfg.FormatTime = func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	root := filepath.Clean(cfg.Root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create submission root: %w", err)
	}

	return &Store{
		root:       root,
		allowed:    allowed,
		maxBytes:   cfg.MaxBytes,
		formatTime: cfg.FormatTime,
		now:        cfg.Now,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the mutex serializing operations on one slot.
func (s *Store) lockFor(slot string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slot]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slot] = l
	}
	return l
}

func (s *Store) slotDir(slot string) string {
	return filepath.Join(s.root, slot)
}

func (s *Store) markerPath(slot string) string {
	return filepath.Join(s.slotDir(slot), lockMarkerName)
}

// documentPath returns the path of the slot's document, or "" when absent.
func (s *Store) documentPath(slot string) (string, error) {
	for _, ext := range s.allowed {
		path := filepath.Join(s.slotDir(slot), slot+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", nil
}

func (s *Store) markerExists(slot string) (bool, error) {
	if _, err := os.Stat(s.markerPath(slot)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return false, nil
}

// Status reports the slot's current state. It is read-only.
func (s *Store) Status(slot string) (Status, error) {
	lock := s.lockFor(slot)
	lock.Lock()
	defer lock.Unlock()

	confirmed, err := s.markerExists(slot)
	if err != nil {
		return Status{}, apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "check lock marker", err)
	}

	docPath, err := s.documentPath(slot)
	if err != nil {
		return Status{}, apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "check document", err)
	}

	switch {
	case confirmed:
		modified, err := s.lastModified(slot, docPath)
		if err != nil {
			return Status{}, err
		}
		return Status{State: StateConfirmed, LastModified: modified}, nil
	case docPath != "":
		info, err := os.Stat(docPath)
		if err != nil {
			return Status{}, apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "stat document", err)
		}
		return Status{State: StateSubmitted, LastModified: info.ModTime()}, nil
	default:
		return Status{State: StateEmpty}, nil
	}
}

// lastModified prefers the document's mtime and falls back to the marker's
// when the slot was confirmed without a surviving document.
func (s *Store) lastModified(slot, docPath string) (time.Time, error) {
	path := docPath
	if path == "" {
		path = s.markerPath(slot)
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "stat document", err)
	}
	return info.ModTime(), nil
}

// Upload validates and stores an incoming document, replacing any previous
// one. Validation short-circuits on the first failure, in this order:
// confirmed slot, missing consent, missing file, oversize, disallowed
// extension.
func (s *Store) Upload(slot string, up Upload) error {
	lock := s.lockFor(slot)
	lock.Lock()
	defer lock.Unlock()

	confirmed, err := s.markerExists(slot)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "check lock marker", err)
	}
	if confirmed {
		return apperrors.E(apperrors.KindStateConflict, apperrors.CodeConfirmed, "submission is confirmed and locked")
	}
	if !up.Consent {
		return apperrors.E(apperrors.KindInvalidInput, apperrors.CodeIncomplete, "consent is required")
	}
	if up.File == nil || strings.TrimSpace(up.Filename) == "" {
		return apperrors.E(apperrors.KindInvalidInput, apperrors.CodeNoFile, "no file attached")
	}
	if up.Size > s.maxBytes {
		return apperrors.E(apperrors.KindInvalidInput, apperrors.CodeInvalid, "file exceeds maximum size")
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !s.extensionAllowed(ext) {
		return apperrors.E(apperrors.KindInvalidInput, apperrors.CodeInvalid, "file type is not allowed")
	}

	dir := s.slotDir(slot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "create slot directory", err)
	}

	// Stage the incoming bytes first so the slot never holds a partially
	// written document under its final name.
	stagePath := filepath.Join(dir, ".staging-"+uuid.NewString())
	staged, err := os.OpenFile(stagePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "stage document", err)
	}

	written, copyErr := io.Copy(staged, io.LimitReader(up.File, s.maxBytes+1))
	closeErr := staged.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(stagePath)
		if copyErr == nil {
			copyErr = closeErr
		}
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "write document", copyErr)
	}
	// The declared size can lie; re-check what actually arrived.
	if written > s.maxBytes {
		_ = os.Remove(stagePath)
		return apperrors.E(apperrors.KindInvalidInput, apperrors.CodeInvalid, "file exceeds maximum size")
	}

	// Best-effort removal of stale documents with other extensions. A file
	// that is already absent is the expected case, not an error.
	for _, stale := range s.allowed {
		if stale == ext {
			continue
		}
		_ = os.Remove(filepath.Join(dir, slot+stale))
	}

	if err := os.Rename(stagePath, filepath.Join(dir, slot+ext)); err != nil {
		_ = os.Remove(stagePath)
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "store document", err)
	}
	return nil
}

func (s *Store) extensionAllowed(ext string) bool {
	for _, allowed := range s.allowed {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Confirm writes the lock marker for a slot. The marker records who confirmed
// and when. Confirming an already confirmed slot is a no-op: the first
// marker, and its audit value, wins.
func (s *Store) Confirm(slot, participantName string) error {
	lock := s.lockFor(slot)
	lock.Lock()
	defer lock.Unlock()

	confirmed, err := s.markerExists(slot)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "check lock marker", err)
	}
	if confirmed {
		return nil
	}

	if err := os.MkdirAll(s.slotDir(slot), 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "create slot directory", err)
	}

	body := fmt.Sprintf("Confirmed by %s on %s\n", participantName, s.formatTime(s.now()))
	if err := os.WriteFile(s.markerPath(slot), []byte(body), 0o644); err != nil {
		return apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "write lock marker", err)
	}
	return nil
}

// Fetch locates the slot's document for download.
func (s *Store) Fetch(slot string) (Document, error) {
	lock := s.lockFor(slot)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.documentPath(slot)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.KindIO, apperrors.CodeIOError, "check document", err)
	}
	if path == "" {
		return Document{}, apperrors.E(apperrors.KindNotFound, apperrors.CodeNotFound, "no document submitted")
	}

	return Document{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentType: contentTypeFor(filepath.Ext(path)),
	}, nil
}

// knownTypes pins content types for common submission formats so downloads do
// not depend on the host's mime tables.
var knownTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ps":   "application/postscript",
	".tex":  "application/x-tex",
	".zip":  "application/zip",
}

func contentTypeFor(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
