// Package qdrant implements driven.VectorIndex against the Qdrant REST API.
//
// Qdrant point IDs must be unsigned integers or UUIDs, so caller IDs are
// mapped to name-based UUIDs and the original is kept in the payload under
// the "_id" key.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// payloadIDKey holds the caller's point ID inside the Qdrant payload.
const payloadIDKey = "_id"

// pointNamespace seeds the name-based UUIDs derived from caller IDs.
var pointNamespace = uuid.MustParse("6f1c1a52-3b7e-4b8e-9a53-7d0c5c1e2f10")

// Config configures the REST client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// VectorIndex is safe for concurrent use.
type VectorIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

// NewVectorIndex creates a client. No request is made until the first
// operation.
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant URL is required", domain.ErrInvalidInput)
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: qdrant URL: %w", domain.ErrInvalidInput, err)
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &VectorIndex{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     client,
	}, nil
}

// PointID maps a caller ID to the UUID stored in Qdrant.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates a cosine collection, or checks the dimension of
// an existing one.
func (v *VectorIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	info, err := v.info(ctx)
	switch {
	case err == nil:
		if existing := info.Result.Config.Params.Vectors.Size; existing != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				domain.ErrDimensionMismatch, v.collection, existing, dimension)
		}
	case errors.Is(err, domain.ErrIndexNotReady):
		body := map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
		}
		if err := v.do(ctx, http.MethodPut, v.collectionPath(), body, nil); err != nil {
			return err
		}
	default:
		return err
	}

	v.setDimension(dimension)
	return nil
}

// Upsert writes the batch and waits for it to be applied.
func (v *VectorIndex) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	dim, err := v.currentDimension(ctx)
	if err != nil {
		return err
	}

	type wirePoint struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	wire := make([]wirePoint, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has an empty id", domain.ErrInvalidInput, i)
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %q has %d dimensions, collection %q expects %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), v.collection, dim)
		}
		payload := vecmath.CopyMetadata(p.Metadata)
		if payload == nil {
			payload = map[string]any{}
		}
		payload[payloadIDKey] = p.ID
		wire[i] = wirePoint{ID: PointID(p.ID), Vector: p.Vector, Payload: payload}
	}

	return v.do(ctx, http.MethodPut, v.collectionPath()+"/points?wait=true",
		map[string]any{"points": wire}, nil)
}

// Search sends a filtered search and re-ranks the hits.
func (v *VectorIndex) Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	dim, err := v.currentDimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			domain.ErrDimensionMismatch, len(q.Vector), v.collection, dim)
	}
	if q.Limit <= 0 {
		return []domain.SearchResult{}, nil
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := v.do(ctx, http.MethodPost, v.collectionPath()+"/points/search", searchRequest(q), &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Score < q.ScoreThreshold {
			continue
		}
		id, _ := r.Payload[payloadIDKey].(string)
		delete(r.Payload, payloadIDKey)
		results = append(results, domain.SearchResult{ID: id, Score: r.Score, Metadata: r.Payload})
	}

	return vecmath.Rank(results, q.Limit), nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	uuids := make([]string, len(ids))
	for i, id := range ids {
		uuids[i] = PointID(id)
	}

	err := v.do(ctx, http.MethodPost, v.collectionPath()+"/points/delete?wait=true",
		map[string]any{"points": uuids}, nil)
	if errors.Is(err, domain.ErrIndexNotReady) {
		return nil
	}
	return err
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.CollectionStats, error) {
	info, err := v.info(ctx)
	if err != nil {
		return domain.CollectionStats{}, err
	}
	return domain.CollectionStats{
		Name:      v.collection,
		Dimension: info.Result.Config.Params.Vectors.Size,
		Count:     info.Result.PointsCount,
		Backend:   domain.VectorBackendQdrant,
	}, nil
}

// Reset deletes the collection.
func (v *VectorIndex) Reset(ctx context.Context) error {
	err := v.do(ctx, http.MethodDelete, v.collectionPath(), nil, nil)
	if err != nil && !errors.Is(err, domain.ErrIndexNotReady) {
		return err
	}
	v.setDimension(0)
	return nil
}

// Close releases idle connections.
func (v *VectorIndex) Close() error {
	v.client.CloseIdleConnections()
	return nil
}

func (v *VectorIndex) collectionPath() string {
	return "/collections/" + url.PathEscape(v.collection)
}

func (v *VectorIndex) info(ctx context.Context) (*collectionInfo, error) {
	var info collectionInfo
	if err := v.do(ctx, http.MethodGet, v.collectionPath(), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (v *VectorIndex) setDimension(d int) {
	v.mu.Lock()
	v.dimension = d
	v.mu.Unlock()
}

func (v *VectorIndex) currentDimension(ctx context.Context) (int, error) {
	v.mu.RLock()
	dim := v.dimension
	v.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	info, err := v.info(ctx)
	if err != nil {
		return 0, err
	}
	dim = info.Result.Config.Params.Vectors.Size
	v.setDimension(dim)
	return dim, nil
}

// searchRequest builds the search body. Scope values that parse as integers
// also match integer payloads, since Qdrant compares keywords and integers
// separately.
func searchRequest(q domain.VectorQuery) map[string]any {
	req := map[string]any{
		"vector":          q.Vector,
		"limit":           q.Limit,
		"with_payload":    true,
		"score_threshold": q.ScoreThreshold,
	}

	if len(q.Filter) == 0 {
		return req
	}

	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]any, 0, len(keys))
	for _, k := range keys {
		val := q.Filter[k]
		cond := map[string]any{"key": k, "match": map[string]any{"value": val}}
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			must = append(must, map[string]any{"should": []any{
				cond,
				map[string]any{"key": k, "match": map[string]any{"value": n}},
			}})
			continue
		}
		must = append(must, cond)
	}
	req["filter"] = map[string]any{"must": must}
	return req
}

func (v *VectorIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("qdrant %s %s: %w", method, path, ctx.Err())
		}
		return fmt.Errorf("%w: qdrant %s %s: %w", domain.ErrVectorIndexUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding qdrant response: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

func statusError(code int, method, path, msg string) error {
	detail := fmt.Sprintf("qdrant %s %s: status %d: %s", method, path, code, msg)
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrIndexNotReady, detail)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "dimension"):
		return fmt.Errorf("%w: %s", domain.ErrDimensionMismatch, detail)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, detail)
	default:
		return fmt.Errorf("%w: %s", domain.ErrVectorIndexUnavailable, detail)
	}
}
