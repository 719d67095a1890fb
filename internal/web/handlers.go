package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"pdf-qa/internal/parser"
	"pdf-qa/internal/rag"
	"pdf-qa/internal/session"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	defer backToIndex(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Error parsing upload")
		sess.AddNotice(session.NoticeError, "Error: upload is malformed or larger than %d bytes", s.cfg.MaxUploadBytes)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sess.AddNotice(session.NoticeWarning, "Please choose a file to upload.")
		return
	}
	defer file.Close()

	path, err := sess.Upload(header.Filename, file)
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		sess.AddNotice(session.NoticeWarning, "Unsupported file type. Accepted: %s", strings.Join(parser.SupportedExtensions(), ", "))
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("Error storing upload")
		sess.AddNotice(session.NoticeError, "Error: %v", err)
	default:
		sess.AddNotice(session.NoticeInfo, "Uploaded %s. Press Process PDF to index it.", baseName(path))
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	defer backToIndex(w, r)

	n, err := sess.Process(r.Context())
	switch {
	case errors.Is(err, session.ErrNoUpload):
		sess.AddNotice(session.NoticeWarning, "Please upload a PDF first.")
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("Error processing document")
		sess.AddNotice(session.NoticeError, "Error: %v", err)
	default:
		sess.AddNotice(session.NoticeSuccess, "Processed PDF into %d chunks!", n)
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	defer backToIndex(w, r)

	_, err := sess.Ask(r.Context(), r.FormValue("question"))
	switch {
	case errors.Is(err, rag.ErrIndexNotReady):
		sess.AddNotice(session.NoticeWarning, "Please upload and process a PDF first.")
	case errors.Is(err, session.ErrEmptyQuestion):
		sess.AddNotice(session.NoticeWarning, "Please enter a question.")
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("Error answering question")
		sess.AddNotice(session.NoticeError, "Error: %v", err)
	default:
		sess.AddNotice(session.NoticeSuccess, "Answer Generated!")
	}
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).ClearHistory()
	backToIndex(w, r)
}

// handleEndSession drops the caller's session and its index; the redirect
// starts a fresh one.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(sessionFrom(r).ID)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	backToIndex(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Count(),
	})
}
