package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docqa/rag"
)

// wordEmbedder is a deterministic bag-of-words embedder for handler tests.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 16)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := 0
		for _, r := range tok {
			h = h*31 + int(r)
		}
		if h < 0 {
			h = -h
		}
		vec[h%16]++
	}
	return vec, nil
}

// queueLLM returns canned completions in order, repeating the last one.
type queueLLM struct {
	mu     sync.Mutex
	script []string
}

func (l *queueLLM) Complete(context.Context, string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.script) == 0 {
		return "", errors.New("llm down")
	}
	resp := l.script[0]
	if len(l.script) > 1 {
		l.script = l.script[1:]
	}
	return resp, nil
}

func testEngine(responses ...string) *rag.Engine {
	llm := &queueLLM{script: responses}
	return rag.NewEngine(rag.NewMemoryVectorStore(nil), wordEmbedder{}, llm, rag.EngineConfig{}, nil, nil)
}

// multipartUpload builds a multipart request body with one file field plus
// optional extra form fields.
func multipartUpload(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func uploadDocument(t *testing.T, h *DocumentHandler, fileName, content string) {
	t.Helper()

	body, contentType := multipartUpload(t, fileName, content, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.HandleCollection(w, r)
	require.Equal(t, http.StatusOK, w.Code, "upload failed: %s", w.Body.String())
}
