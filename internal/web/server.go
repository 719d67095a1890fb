package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
	"pdf-qa/internal/parser"
	"pdf-qa/internal/session"
)

const sessionCookie = "pdfqa_session"

//go:embed templates/index.html
var templateFS embed.FS

type ctxKey struct{}

// Server renders the single-page UI and routes its form posts to the
// caller's session.
type Server struct {
	cfg      *config.ServerConfig
	sessions *session.Manager
	page     *template.Template
	logger   zerolog.Logger
}

func NewServer(cfg *config.ServerConfig, sessions *session.Manager, logger zerolog.Logger) (*Server, error) {
	page, err := template.New("index.html").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, sessions: sessions, page: page, logger: logger}, nil
}

// Routes creates and configures the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/", s.handleIndex)
		r.Post("/upload", s.handleUpload)
		r.Post("/process", s.handleProcess)
		r.Post("/ask", s.handleAsk)
		r.Post("/history/clear", s.handleClearHistory)
		r.Post("/session/end", s.handleEndSession)
	})

	return r
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

// withSession resolves the session cookie, starting a new session when the
// cookie is missing or its session has expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session.Session
		if c, err := r.Cookie(sessionCookie); err == nil {
			sess, _ = s.sessions.Get(c.Value)
		}
		if sess == nil {
			created, err := s.sessions.Create()
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("Error creating session")
				http.Error(w, "failed to start session", http.StatusInternalServerError)
				return
			}
			sess = created
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

type pageData struct {
	Accept   string
	Uploaded string
	Current  string
	Ready    bool
	Notices  []session.Notice
	History  []models.Exchange
	Answer   *models.Exchange
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	data := pageData{
		Accept:   strings.Join(parser.SupportedExtensions(), ","),
		Uploaded: baseName(sess.Uploaded()),
		Current:  baseName(sess.CurrentDocument()),
		Ready:    sess.Processed(),
		Notices:  sess.TakeNotices(),
		History:  sess.History(),
	}
	if last, ok := sess.LastAnswer(); ok {
		data.Answer = &last
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error rendering page")
	}
}

func backToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
