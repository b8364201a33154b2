package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/resilience/errdefs"
)

func TestSearchSuccess(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"results":[
			{"content":"clause 4 survives termination","score":0.92,"title":"Lease v3","url":"https://docs.test/lease"},
			{"content":"secondary passage","score":0.4,"title":"","url":""}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret-token"})
	passages, err := client.Search(context.Background(), "lease termination", 5)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "lease termination", gotBody["query"])
	assert.EqualValues(t, 5, gotBody["top_k"])

	require.Len(t, passages, 2)
	assert.Equal(t, "clause 4 survives termination", passages[0].Content)
	assert.InDelta(t, 0.92, passages[0].Score, 0.001)
	assert.Equal(t, "Lease v3", passages[0].Title)
}

func TestSearchNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	passages, err := client.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSearchServerErrorMapsToHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Search(context.Background(), "q", 3)

	var httpErr *errdefs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, errdefs.Transient(err), "5xx must classify as transient")
}

func TestSearchClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed query", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Search(context.Background(), "q", 3)

	require.Error(t, err)
	assert.True(t, errdefs.Terminal(err), "4xx must classify as terminal")
}

func TestSearchContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Search(ctx, "q", 3)
	assert.ErrorIs(t, err, context.Canceled)
}
