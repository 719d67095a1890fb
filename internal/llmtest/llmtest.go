// Package llmtest provides deterministic stand-ins for the embedding and
// completion services.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const Dimensions = 64

// HashEmbedder embeds text as a hashed bag of lower-cased words. Texts that
// share words get similar vectors, which is enough to drive retrieval.
type HashEmbedder struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.Calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = Vector(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Vector is the embedding HashEmbedder returns for text.
func Vector(text string) []float32 {
	v := make([]float32, Dimensions)
	// a small constant component keeps the vector away from zero
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[1+int(h.Sum32()%(Dimensions-1))]++
	}
	return v
}

// RecordingLLM is an llms.Model that records prompts and call options and
// replies through Reply.
type RecordingLLM struct {
	mu      sync.Mutex
	Reply   func(prompt string) (string, error)
	prompts []string
	options []llms.CallOptions
}

// NewRecordingLLM answers every prompt with answer.
func NewRecordingLLM(answer string) *RecordingLLM {
	return &RecordingLLM{Reply: func(string) (string, error) { return answer, nil }}
}

// NewFailingLLM fails every call with err.
func NewFailingLLM(err error) *RecordingLLM {
	return &RecordingLLM{Reply: func(string) (string, error) { return "", err }}
}

func (m *RecordingLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}

	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt.String())
	m.options = append(m.options, opts)
	reply := m.Reply
	m.mu.Unlock()

	if reply == nil {
		return nil, errors.New("llmtest: no reply configured")
	}
	answer, err := reply(prompt.String())
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

func (m *RecordingLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// SetReply swaps the reply function.
func (m *RecordingLLM) SetReply(reply func(prompt string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reply = reply
}

// Prompts returns every prompt received so far.
func (m *RecordingLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the call options of the most recent call.
func (m *RecordingLLM) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return llms.CallOptions{}
	}
	return m.options[len(m.options)-1]
}
