// Package web serves the submission UI over HTTP.
//
// The handlers here are glue: they verify the session, hand the core a
// (participant, upload) pair and render the structured result. All state and
// invariants live in the roster and submission packages.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openconf/paperdrop/internal/audit"
	"github.com/openconf/paperdrop/internal/deadline"
	"github.com/openconf/paperdrop/internal/roster"
	"github.com/openconf/paperdrop/internal/slot"
	"github.com/openconf/paperdrop/internal/submission"
	"github.com/openconf/paperdrop/internal/web/sessioncookie"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// defaultSessionTTL bounds how long a login stays valid.
const defaultSessionTTL = 12 * time.Hour

// uploadFormOverhead is the slack added on top of the document size cap when
// limiting the request body (multipart boundaries, form fields).
const uploadFormOverhead = 1 << 20

// Config defines the inputs for the web server.
type Config struct {
	Roster *roster.Roster
	Store  *submission.Store
	Clock  deadline.Clock
	Audit  *audit.Emitter

	// SessionSecret signs session tokens. Required.
	SessionSecret string

	// SessionTTL caps session lifetime. Defaults to 12h.
	SessionTTL time.Duration

	// MaxUploadBytes caps the request body on the upload route. It should
	// match the store's document size cap.
	MaxUploadBytes int64
}

// Server hosts the submission UI handlers.
type Server struct {
	roster    *roster.Roster
	store     *submission.Store
	clock     deadline.Clock
	audit     *audit.Emitter
	tokens    *tokenCodec
	maxUpload int64
	tracer    trace.Tracer
}

// NewServer wires the web layer over its collaborators.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("submission store is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	tokens, err := newTokenCodec(cfg.SessionSecret, ttl, cfg.Clock.Now)
	if err != nil {
		return nil, err
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}

	return &Server{
		roster:    cfg.Roster,
		store:     cfg.Store,
		clock:     cfg.Clock,
		audit:     cfg.Audit,
		tokens:    tokens,
		maxUpload: maxUpload,
		tracer:    otel.Tracer("github.com/openconf/paperdrop/internal/web"),
	}, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireParticipant)
		r.Get("/submission", s.handleSubmission)
		r.Post("/submission/upload", s.handleUpload)
		r.Post("/submission/confirm", s.handleConfirm)
		r.Get("/submission/paper", s.handleDownload)
	})

	return r
}

type contextKey struct{}

// participantFrom returns the authenticated participant stored by the
// session middleware.
func participantFrom(ctx context.Context) (roster.Participant, bool) {
	p, ok := ctx.Value(contextKey{}).(roster.Participant)
	return p, ok
}

// sessionParticipant resolves the request's session cookie to a roster
// participant.
func (s *Server) sessionParticipant(r *http.Request) (roster.Participant, bool) {
	token, ok := sessioncookie.Read(r)
	if !ok {
		return roster.Participant{}, false
	}
	paperID, email, err := s.tokens.Decode(token)
	if err != nil {
		return roster.Participant{}, false
	}
	return s.roster.Find(paperID, email)
}

// requireParticipant gates protected routes behind a valid session.
func (s *Server) requireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.sessionParticipant(r)
		if !ok {
			sessioncookie.Clear(w, r)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, p)))
	})
}

// slotFor computes the storage location for an authenticated participant.
func (s *Server) slotFor(p roster.Participant) string {
	return slot.Resolve(p)
}
