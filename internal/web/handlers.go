package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/openconf/paperdrop/internal/audit"
	apperrors "github.com/openconf/paperdrop/internal/platform/errors"
	"github.com/openconf/paperdrop/internal/roster"
	"github.com/openconf/paperdrop/internal/submission"
	"github.com/openconf/paperdrop/internal/web/sessioncookie"
)

type loginView struct {
	Error string
}

// submissionView is the page model for the slot status view.
type submissionView struct {
	Name               string
	PaperID            int
	PaperTitle         string
	Message            string
	AlreadyUploaded    bool
	LastSubmissionTime string
	AlreadyConfirmed   bool
	CurrentTime        string
	DeadlineTime       string
	Overdue            bool
}

// genericLoginError never hints whether the identity or the password was
// wrong.
const genericLoginError = "Invalid paper ID, email or password."

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionParticipant(r); ok {
		http.Redirect(w, r, "/submission", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, loginView{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "web.login")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, http.StatusBadRequest, loginView{Error: genericLoginError})
		return
	}

	paperID, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("paper_id")))
	if err != nil {
		s.renderLogin(w, http.StatusUnauthorized, loginView{Error: genericLoginError})
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	p, err := s.roster.Verify(paperID, email, password)
	if err != nil {
		s.renderLogin(w, http.StatusUnauthorized, loginView{Error: genericLoginError})
		return
	}

	token, err := s.tokens.Encode(p.PaperID, p.Email)
	if err != nil {
		log.Printf("encode session token: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sessioncookie.Write(w, r, token)

	s.emit(ctx, audit.Event{Kind: audit.KindLogin, PaperID: p.PaperID, Email: p.Email})
	http.Redirect(w, r, "/submission", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessioncookie.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	p, ok := participantFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	message := ""
	switch r.URL.Query().Get("flash") {
	case "uploaded":
		message = "Your paper has been uploaded."
	case "confirmed":
		message = "Your submission has been confirmed."
	}

	view, err := s.submissionViewFor(p, message)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}
	s.renderSubmission(w, http.StatusOK, view)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "web.upload")
	defer span.End()

	p, ok := participantFrom(ctx)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+uploadFormOverhead)
	if err := r.ParseMultipartForm(s.maxUpload + uploadFormOverhead); err != nil {
		s.renderSubmissionResult(w, p, http.StatusBadRequest, "The uploaded file exceeds the maximum size.")
		return
	}

	up := submission.Upload{
		Consent: r.PostFormValue("consent") != "",
	}
	file, header, err := r.FormFile("paper")
	switch {
	case err == nil:
		defer file.Close()
		up.Filename = header.Filename
		up.Size = header.Size
		up.File = file
	case errors.Is(err, http.ErrMissingFile):
		// Leave up.File nil; the store reports no_file in validation order.
	default:
		s.renderSubmissionResult(w, p, http.StatusBadRequest, "The upload could not be read.")
		return
	}

	slotName := s.slotFor(p)
	if err := s.store.Upload(slotName, up); err != nil {
		s.renderSubmissionResult(w, p, apperrors.HTTPStatus(err), resultMessage(err))
		return
	}

	s.emit(ctx, audit.Event{
		Kind:    audit.KindUpload,
		PaperID: p.PaperID,
		Email:   p.Email,
		Slot:    slotName,
		Detail:  up.Filename,
	})
	http.Redirect(w, r, "/submission?flash=uploaded", http.StatusSeeOther)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "web.confirm")
	defer span.End()

	p, ok := participantFrom(ctx)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	slotName := s.slotFor(p)
	if err := s.store.Confirm(slotName, p.Name); err != nil {
		s.renderSubmissionResult(w, p, apperrors.HTTPStatus(err), resultMessage(err))
		return
	}

	s.emit(ctx, audit.Event{
		Kind:    audit.KindConfirm,
		PaperID: p.PaperID,
		Email:   p.Email,
		Slot:    slotName,
	})
	http.Redirect(w, r, "/submission?flash=confirmed", http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "web.download")
	defer span.End()

	p, ok := participantFrom(ctx)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	slotName := s.slotFor(p)
	doc, err := s.store.Fetch(slotName)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	s.emit(ctx, audit.Event{
		Kind:    audit.KindDownload,
		PaperID: p.PaperID,
		Email:   p.Email,
		Slot:    slotName,
		Detail:  doc.Filename,
	})

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	http.ServeFile(w, r, doc.Path)
}

// submissionViewFor assembles the slot status view model.
func (s *Server) submissionViewFor(p roster.Participant, message string) (submissionView, error) {
	status, err := s.store.Status(s.slotFor(p))
	if err != nil {
		return submissionView{}, err
	}

	now := s.clock.Now()
	view := submissionView{
		Name:             p.Name,
		PaperID:          p.PaperID,
		PaperTitle:       p.PaperTitle,
		Message:          message,
		AlreadyUploaded:  status.State != submission.StateEmpty,
		AlreadyConfirmed: status.State == submission.StateConfirmed,
		CurrentTime:      s.clock.Format(now),
		DeadlineTime:     s.clock.Format(s.clock.Deadline()),
		Overdue:          s.clock.OverdueAt(now),
	}
	if !status.LastModified.IsZero() {
		view.LastSubmissionTime = s.clock.Format(status.LastModified)
	}
	return view, nil
}

// renderSubmissionResult re-renders the status page with an operation result.
func (s *Server) renderSubmissionResult(w http.ResponseWriter, p roster.Participant, statusCode int, message string) {
	view, err := s.submissionViewFor(p, message)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}
	s.renderSubmission(w, statusCode, view)
}

// resultMessage maps a core failure to the user-visible message. Storage
// failures surface their underlying error verbatim.
func resultMessage(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfirmed:
		return "Your submission is already confirmed and can no longer be changed."
	case apperrors.CodeIncomplete:
		return "Please tick the consent checkbox before uploading."
	case apperrors.CodeNoFile:
		return "No file was attached."
	case apperrors.CodeInvalid:
		return "The file must use an allowed format and stay under the size limit."
	case apperrors.CodeNotFound:
		return "No document has been submitted."
	default:
		return err.Error()
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, statusCode int, view loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ExecuteTemplate(w, "login.html", view); err != nil {
		log.Printf("render login: %v", err)
	}
}

func (s *Server) renderSubmission(w http.ResponseWriter, statusCode int, view submissionView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ExecuteTemplate(w, "submission.html", view); err != nil {
		log.Printf("render submission: %v", err)
	}
}

// emit records an audit event; failures are logged, never surfaced.
func (s *Server) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, event); err != nil {
		log.Printf("audit %s: %v", event.Kind, err)
	}
}
