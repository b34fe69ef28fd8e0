package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// Payload keys for segment metadata stored with each Qdrant point. Deletion
// is scoped by the flat file_name key.
const (
	payloadFileNameField = "file_name"
	payloadTextField     = "text"
	payloadPositionField = "position"
)

// QdrantConfig configures the Qdrant-backed VectorStore.
type QdrantConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key,omitempty" yaml:"api_key"`
	Collection string        `json:"collection" yaml:"collection"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout"`
	Distance   string        `json:"distance,omitempty" yaml:"distance"` // Cosine (default), Dot, Euclid
}

// QdrantStore implements VectorStore over Qdrant's REST API.
//
// The collection is created lazily on the first upsert (the vector dimension
// is not known earlier) and destroyed+recreated by Recreate, so a cleared
// session leaves no stale collection config behind.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	created bool
}

// NewQdrantStore creates a Qdrant-backed VectorStore.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "session_documents"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_store")),
	}
}

var qdrantNamespace = uuid.MustParse("7f1d3c9a-2b60-4f15-9c33-a8e4b0d1f2c5")

// qdrantPointID derives a stable UUID point ID from a segment ID, since
// Qdrant only accepts UUIDs or unsigned integers as point IDs.
func qdrantPointID(segmentID string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(segmentID)).String()
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

// doJSON issues a request with a JSON body and decodes a JSON response.
func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := s.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(s.cfg.Collection), suffix)
}

// ensureCollection creates the collection if this store has not created it
// yet. Qdrant answers 409 when the collection already exists.
func (s *QdrantStore) ensureCollection(ctx context.Context, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be > 0")
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": s.cfg.Distance,
		},
	}
	reqBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+s.collectionPath(""), bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant create collection failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	s.created = true
	s.logger.Debug("collection ready",
		zap.String("collection", s.cfg.Collection),
		zap.Int("vector_size", vectorSize))
	return nil
}

// hasCollection reports whether the collection has been created since the
// last Recreate. Before the first upsert the store is empty by definition.
func (s *QdrantStore) hasCollection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// AddSegments upserts one point per segment with file_name/text/position
// payload metadata.
func (s *QdrantStore) AddSegments(ctx context.Context, segments []types.Segment, vectors [][]float64) error {
	if len(segments) == 0 {
		return nil
	}
	if len(segments) != len(vectors) {
		return types.NewValidation("segments/vectors length mismatch: %d vs %d", len(segments), len(vectors))
	}

	vectorSize := 0
	for i, vec := range vectors {
		if len(vec) == 0 {
			return types.NewValidation("segment %s has an empty vector", segments[i].ID)
		}
		if vectorSize == 0 {
			vectorSize = len(vec)
		}
		if len(vec) != vectorSize {
			return types.NewValidation("segment %s vector dimension mismatch: got %d want %d", segments[i].ID, len(vec), vectorSize)
		}
	}

	if err := s.ensureCollection(ctx, vectorSize); err != nil {
		return types.NewBackendUnavailable("ingest", "create qdrant collection").WithCause(err)
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float64      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(segments))
	for i, seg := range segments {
		points = append(points, point{
			ID:     qdrantPointID(seg.ID),
			Vector: vectors[i],
			Payload: map[string]any{
				payloadFileNameField: seg.SourceFile,
				payloadTextField:     seg.Text,
				payloadPositionField: seg.Position,
				"segment_id":         seg.ID,
			},
		})
	}

	req := struct {
		Points []point `json:"points"`
	}{Points: points}

	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points")+"?wait=true", req, nil); err != nil {
		return types.NewBackendUnavailable("ingest", "qdrant upsert").WithCause(err)
	}

	s.logger.Debug("points upserted", zap.Int("count", len(points)))
	return nil
}

// Search ranks stored segments against the query vector.
func (s *QdrantStore) Search(ctx context.Context, queryVector []float64, topK int) ([]types.ScoredSegment, error) {
	if topK <= 0 || !s.hasCollection() {
		return nil, nil
	}
	if len(queryVector) == 0 {
		return nil, types.NewValidation("query vector is empty")
	}

	req := struct {
		Vector      []float64 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
		WithVector  bool      `json:"with_vector"`
	}{
		Vector:      queryVector,
		Limit:       topK,
		WithPayload: true,
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, types.NewBackendUnavailable("query", "qdrant search").WithCause(err)
	}

	out := make([]types.ScoredSegment, 0, len(resp.Result))
	for _, r := range resp.Result {
		seg := segmentFromPayload(r.Payload)
		if seg.ID == "" {
			seg.ID = fmt.Sprint(r.ID)
		}
		out = append(out, types.ScoredSegment{Segment: seg, Score: r.Score})
	}
	return out, nil
}

// DeleteBySourceFile deletes every point whose file_name payload matches.
func (s *QdrantStore) DeleteBySourceFile(ctx context.Context, sourceFile string) error {
	if !s.hasCollection() {
		return nil
	}

	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   payloadFileNameField,
					"match": map[string]any{"value": sourceFile},
				},
			},
		},
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete")+"?wait=true", req, nil); err != nil {
		return types.NewBackendUnavailable("delete", "qdrant delete by filter").WithCause(err)
	}

	s.logger.Debug("points deleted", zap.String("file_name", sourceFile))
	return nil
}

// ListSourceFiles scans all points via scroll pagination and returns the
// deduplicated file_name payload values.
func (s *QdrantStore) ListSourceFiles(ctx context.Context) ([]string, error) {
	if !s.hasCollection() {
		return []string{}, nil
	}

	const pageSize = 1000

	seen := make(map[string]bool)
	files := make([]string, 0)
	var offset any

	for {
		req := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &resp); err != nil {
			return nil, types.NewBackendUnavailable("list", "qdrant scroll").WithCause(err)
		}

		for _, p := range resp.Result.Points {
			name, _ := p.Payload[payloadFileNameField].(string)
			if name != "" && !seen[name] {
				seen[name] = true
				files = append(files, name)
			}
		}

		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	return files, nil
}

// Count returns the exact stored point count.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if !s.hasCollection() {
		return 0, nil
	}

	req := struct {
		Exact bool `json:"exact"`
	}{Exact: true}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/count"), req, &resp); err != nil {
		return 0, types.NewBackendUnavailable("stats", "qdrant count").WithCause(err)
	}
	return resp.Result.Count, nil
}

// Recreate deletes the collection outright. The next upsert creates it fresh
// with the then-current vector dimension, so no schema drift survives a
// clear. A missing collection is not an error.
func (s *QdrantStore) Recreate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+s.collectionPath(""), nil)
	if err != nil {
		return types.NewBackendUnavailable("clear", "qdrant delete collection").WithCause(err)
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewBackendUnavailable("clear", "qdrant delete collection").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		raw, _ := io.ReadAll(resp.Body)
		return types.NewBackendUnavailable("clear",
			fmt.Sprintf("qdrant delete collection: status=%d body=%s", resp.StatusCode, string(raw)))
	}

	s.mu.Lock()
	s.created = false
	s.mu.Unlock()

	s.logger.Info("collection recreated empty", zap.String("collection", s.cfg.Collection))
	return nil
}

// segmentFromPayload rebuilds a Segment from point payload metadata.
func segmentFromPayload(payload map[string]any) types.Segment {
	var seg types.Segment
	if payload == nil {
		return seg
	}
	if v, ok := payload["segment_id"].(string); ok {
		seg.ID = v
	}
	if v, ok := payload[payloadTextField].(string); ok {
		seg.Text = v
	}
	if v, ok := payload[payloadFileNameField].(string); ok {
		seg.SourceFile = v
	}
	// JSON numbers decode as float64.
	if v, ok := payload[payloadPositionField].(float64); ok {
		seg.Position = int(v)
	}
	return seg
}
