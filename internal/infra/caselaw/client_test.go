package caselaw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

func TestSearchCasesSuccess(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/mcp/zakononline/search_cases", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`[
			{"case_number":"910/1234/24","title":"Lease dispute","description":"Termination upheld","url":"https://cases.test/1234","score":0.8}
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	records, err := client.SearchCases(context.Background(), "lease termination", query.CaseFilters{
		Instance: "3",
		Limit:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, "lease termination", gotBody["query"])
	assert.Equal(t, "3", gotBody["instance"])
	assert.EqualValues(t, 5, gotBody["limit"])
	_, hasYear := gotBody["year"]
	assert.False(t, hasYear, "zero year must be omitted")

	require.Len(t, records, 1)
	assert.Equal(t, "910/1234/24", records[0].CaseNumber)
	assert.Equal(t, "Termination upheld", records[0].Description)
}

func TestCaseDetailsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mcp/zakononline/get_case_details", r.URL.Path)
		_, _ = w.Write([]byte(`{"case_number":"910/1234/24","title":"Lease dispute","court":"Commercial Court","decided":"2024-03-12","full_text":"...","url":"https://cases.test/1234"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	details, err := client.CaseDetails(context.Background(), "910/1234/24", "")
	require.NoError(t, err)
	assert.Equal(t, "Commercial Court", details.Court)
}

func TestCaseDetailsRequiresIdentifier(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused.test"})

	_, err := client.CaseDetails(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, errdefs.Terminal(err), "missing identifier is a caller mistake")
}

func TestSearchCasesUpstreamErrorMapsToHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.SearchCases(context.Background(), "q", query.CaseFilters{Limit: 5})

	var httpErr *errdefs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.True(t, errdefs.Transient(err), "429 must classify as transient")
}

func TestRateLimiterSmoothsRequests(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// 100 rps with burst 1: the second call must wait ~10ms.
	client := NewClient(Config{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Burst:             1,
	})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.SearchCases(ctx, "q", query.CaseFilters{Limit: 1})
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Equal(t, 3, hits)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond, "limiter must pace requests")
}

func TestRateLimiterDisabledWhenZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RequestsPerSecond: 0})
	assert.Nil(t, client.limiter)

	_, err := client.SearchCases(context.Background(), "q", query.CaseFilters{Limit: 1})
	require.NoError(t, err)
}
