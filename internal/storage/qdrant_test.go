package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
	"resume-match-go/internal/types"
)

func TestPointIDDeterministic(t *testing.T) {
	resumeID := types.ContentID("some parsed resume text")

	first := PointID(resumeID)
	second := PointID(resumeID)

	assert.Equal(t, first, second, "same resume ID must map to the same point")
	_, err := uuid.FromString(first)
	require.NoError(t, err, "point ID must be a valid UUID")

	other := PointID(types.ContentID("a different resume"))
	assert.NotEqual(t, first, other)
}

// upsertCapture records the point IDs of every upsert the fake server sees.
type upsertCapture struct {
	pointIDs []string
}

func newFakeQdrant(t *testing.T, capture *upsertCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/collections/"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"config": map[string]interface{}{
						"params": map[string]interface{}{
							"vectors": map[string]interface{}{
								"size":     3,
								"distance": "Cosine",
							},
						},
					},
				},
			})
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
			var body struct {
				Points []struct {
					ID string `json:"id"`
				} `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Points, 1)
			capture.pointIDs = append(capture.pointIDs, body.Points[0].ID)
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUpsertResumeIdempotentPointID(t *testing.T) {
	capture := &upsertCapture{}
	srv := newFakeQdrant(t, capture)

	q, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   srv.URL,
		Collection: "resumes",
		Dimension:  3,
	})
	require.NoError(t, err)

	text := "Senior Go engineer with 7 years of distributed systems work."
	record := &types.ResumeRecord{
		ID:        types.ContentID(text),
		Text:      text,
		Embedding: []float64{0.1, 0.2, 0.3},
	}

	require.NoError(t, q.UpsertResume(context.Background(), record))
	require.NoError(t, q.UpsertResume(context.Background(), record))

	// Re-indexing identical content replaces the existing point rather
	// than adding a second one.
	require.Len(t, capture.pointIDs, 2)
	assert.Equal(t, capture.pointIDs[0], capture.pointIDs[1])
	assert.Equal(t, PointID(record.ID), capture.pointIDs[0])
}

func TestUpsertResumeDimensionMismatch(t *testing.T) {
	capture := &upsertCapture{}
	srv := newFakeQdrant(t, capture)

	q, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   srv.URL,
		Collection: "resumes",
		Dimension:  3,
	})
	require.NoError(t, err)

	err = q.UpsertResume(context.Background(), &types.ResumeRecord{
		ID:        types.ContentID("short vector"),
		Embedding: []float64{0.1, 0.2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
	assert.Empty(t, capture.pointIDs, "a rejected upsert must never reach the server")
}
