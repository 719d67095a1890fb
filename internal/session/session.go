package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/helper"
	"pdf-qa/internal/models"
	"pdf-qa/internal/parser"
	"pdf-qa/internal/rag"
)

var (
	ErrNoUpload      = errors.New("no document uploaded")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrInvalidName   = errors.New("invalid file name")
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-shot message shown to the user on the next render.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Session is the state of one interactive user: the pipeline with its
// current index, the last uploaded document and the search history.
type Session struct {
	ID        string
	CreatedAt time.Time

	pipeline  *rag.RAG
	uploadDir string

	mu         sync.Mutex
	uploaded   string
	processed  bool
	history    []models.Exchange
	notices    []Notice
	lastAnswer *models.Exchange
}

func New(id string, pipeline *rag.RAG, uploadDir string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		pipeline:  pipeline,
		uploadDir: uploadDir,
	}
}

// Upload writes r into the upload directory under the base of name,
// overwriting any file of the same name, and remembers it for Process.
func (s *Session) Upload(name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !parser.Supported(base) {
		return "", fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, base)
	}

	if err := helper.CreateFolder(s.uploadDir); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.mu.Lock()
	s.uploaded = path
	s.mu.Unlock()

	log.Info().Str("session", s.ID).Str("path", path).Msg("Stored upload")
	return path, nil
}

// Process ingests the last uploaded document.
func (s *Session) Process(ctx context.Context, opts ...rag.ProcessOption) (int, error) {
	s.mu.Lock()
	path := s.uploaded
	s.mu.Unlock()
	if path == "" {
		return 0, ErrNoUpload
	}

	n, err := s.pipeline.Process(ctx, path, opts...)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.processed = true
	s.mu.Unlock()
	return n, nil
}

// Ask answers question from the current document and records the exchange.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if !s.pipeline.Ready() {
		return "", rag.ErrIndexNotReady
	}
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	answer, err := s.pipeline.Answer(ctx, question)
	if err != nil {
		return "", err
	}

	exchange := models.Exchange{Question: question, Answer: answer, AskedAt: time.Now()}
	s.mu.Lock()
	s.history = append(s.history, exchange)
	s.lastAnswer = &exchange
	s.mu.Unlock()
	return answer, nil
}

// History returns a copy of the exchanges in the order they were asked.
func (s *Session) History() []models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Exchange(nil), s.history...)
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.lastAnswer = nil
}

// LastAnswer returns the most recent exchange still in the history.
func (s *Session) LastAnswer() (models.Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAnswer == nil {
		return models.Exchange{}, false
	}
	return *s.lastAnswer, true
}

// Uploaded returns the path of the last upload, or "".
func (s *Session) Uploaded() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded
}

// Processed reports whether any document has been indexed in this session.
func (s *Session) Processed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

func (s *Session) CurrentDocument() string {
	return s.pipeline.CurrentDocument()
}

func (s *Session) AddNotice(level NoticeLevel, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// TakeNotices returns and clears the pending notices.
func (s *Session) TakeNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	notices := s.notices
	s.notices = nil
	return notices
}

// Close discards the session index.
func (s *Session) Close() error {
	return s.pipeline.Close()
}
