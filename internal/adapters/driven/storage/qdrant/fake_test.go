package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// fakeQdrant implements the subset of the Qdrant REST API the adapter uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	apiKey      string
	requests    []string
}

type fakeCollection struct {
	size   int
	points map[string]fakePoint
}

type fakePoint struct {
	vector  []float32
	payload map[string]any
}

type fakeCondition struct {
	Key    string          `json:"key"`
	Match  *fakeMatch      `json:"match"`
	Should []fakeCondition `json:"should"`
}

type fakeMatch struct {
	Value any `json:"value"`
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{collections: make(map[string]*fakeCollection)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		http.Error(w, `{"status":{"error":"unauthorized"}}`, http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]
	coll := f.collections[name]
	action := strings.Join(parts[2:], "/")

	switch {
	case action == "" && r.Method == http.MethodGet:
		if coll == nil {
			notFound(w)
			return
		}
		var info collectionInfo
		info.Result.PointsCount = len(coll.points)
		info.Result.Config.Params.Vectors.Size = coll.size
		writeJSON(w, info)

	case action == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = &fakeCollection{size: body.Vectors.Size, points: make(map[string]fakePoint)}
		writeJSON(w, map[string]any{"result": true})

	case action == "" && r.Method == http.MethodDelete:
		if coll == nil {
			notFound(w)
			return
		}
		delete(f.collections, name)
		writeJSON(w, map[string]any{"result": true})

	case coll == nil:
		notFound(w)

	case action == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Vector  []float32      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if len(p.Vector) != coll.size {
				http.Error(w, `{"status":{"error":"Wrong input: Vector dimension error"}}`, http.StatusBadRequest)
				return
			}
		}
		for _, p := range body.Points {
			coll.points[p.ID] = fakePoint{vector: p.Vector, payload: p.Payload}
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})

	case action == "points/delete":
		var body struct {
			Points []string `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.Points {
			delete(coll.points, id)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})

	case action == "points/search":
		var body struct {
			Vector         []float32 `json:"vector"`
			Limit          int       `json:"limit"`
			ScoreThreshold *float64  `json:"score_threshold"`
			Filter         struct {
				Must []fakeCondition `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		var hits []domain.SearchResult
		for id, p := range coll.points {
			if !allMatch(body.Filter.Must, p.payload) {
				continue
			}
			score := vecmath.Cosine(body.Vector, p.vector)
			if body.ScoreThreshold != nil && score < *body.ScoreThreshold {
				continue
			}
			hits = append(hits, domain.SearchResult{ID: id, Score: score, Metadata: vecmath.CopyMetadata(p.payload)})
		}
		hits = vecmath.Rank(hits, body.Limit)

		type hit struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		out := make([]hit, len(hits))
		for i, h := range hits {
			out[i] = hit{ID: h.ID, Score: h.Score, Payload: h.Metadata}
		}
		writeJSON(w, map[string]any{"result": out})

	default:
		http.NotFound(w, r)
	}
}

func allMatch(conds []fakeCondition, payload map[string]any) bool {
	for _, c := range conds {
		if !conditionMatches(c, payload) {
			return false
		}
	}
	return true
}

func conditionMatches(c fakeCondition, payload map[string]any) bool {
	if len(c.Should) > 0 {
		for _, s := range c.Should {
			if conditionMatches(s, payload) {
				return true
			}
		}
		return false
	}
	got, ok := payload[c.Key]
	if !ok || c.Match == nil {
		return false
	}
	// Keyword conditions only match strings and integer conditions only
	// match numbers.
	switch want := c.Match.Value.(type) {
	case string:
		s, isString := got.(string)
		return isString && s == want
	case float64:
		n, isNumber := got.(float64)
		return isNumber && n == want
	}
	return false
}

func notFound(w http.ResponseWriter) {
	http.Error(w, `{"status":{"error":"Not found: Collection doesn't exist!"}}`, http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
