package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faqPayload = `{
  "items": [
    {"id": "a1", "url": "https://docs.example.com/a", "title": "Reset password",
     "content": "How to reset", "word_count": 42,
     "analysis": {"summary": "Resetting", "strengths": ["clear", "short"], "weaknesses": "none", "score": 81}},
    {"id": "b2", "url": "https://docs.example.com/b", "title": "Raw page",
     "html": "scraped text", "scraped_at": "2025-01-01T00:00:00Z"}
  ],
  "count": 2,
  "time_utc": "2025-01-01T00:00:00Z"
}`

func TestClient_FAQ(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/faq", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(faqPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	assert.Equal(t, srv.URL, c.BaseURL())

	list, err := c.FAQ(context.Background(), "score")
	require.NoError(t, err)
	assert.Equal(t, "sort=score", gotQuery)
	require.Len(t, list.Items, 2)

	first := list.Items[0]
	score, ok := first.Score()
	assert.True(t, ok)
	assert.Equal(t, 81, score)
	assert.Equal(t, "- clear\n- short", first.Strengths())
	require.NotNil(t, first.WordCount)
	assert.Equal(t, 42, *first.WordCount)

	second := list.Items[1]
	_, ok = second.Score()
	assert.False(t, ok)
	assert.Equal(t, "scraped text", second.Body())
	assert.Contains(t, string(second.Raw), `"scraped_at"`)

	_, err = c.FAQ(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", gotQuery)
}

func TestClient_HTTPErrorCarriesDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clean":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "No raw data found. Run /scrape first."}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Clean(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "HTTP 400 calling POST /clean", apiErr.Error())
	assert.Equal(t, map[string]any{"detail": "No raw data found. Run /scrape first."}, apiErr.Details)
	assert.Contains(t, apiErr.DetailsText(), "Run /scrape first")

	_, err = c.Health(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Details)
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Error(), "Invalid JSON from GET /health")
	assert.Equal(t, "<html>not json</html>", apiErr.Details)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Error(), "Network error calling GET /health")
	assert.Zero(t, apiErr.StatusCode)
}

func TestClient_AnalyzeSendsForce(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got = append(got, r.URL.Path+"?"+r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(RunResult{Message: "ok", Created: 3, Skipped: 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Run(context.Background(), ActionAnalyze, true)
	require.NoError(t, err)
	assert.Equal(t, "ANALYZE OK - created=3 updated=0 skipped=1 errors=0", res.Summary(ActionAnalyze))

	_, err = c.Analyze(context.Background(), false)
	require.NoError(t, err)
	_, err = c.Run(context.Background(), ActionScrape, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/analyze?force=true", "/analyze?force=false", "/scrape?"}, got)

	_, err = c.Run(context.Background(), Action("nope"), false)
	assert.Error(t, err)
}

func TestScore_Decoding(t *testing.T) {
	cases := map[string]Score{
		`72`:      NewScore(72),
		`72.9`:    NewScore(72),
		`"64"`:    NewScore(64),
		`" 5 "`:   NewScore(5),
		`"n/a"`:   {},
		`null`:    {},
		`true`:    {},
		`{"a":1}`: {},
	}
	for raw, want := range cases {
		var s Score
		require.NoError(t, json.Unmarshal([]byte(raw), &s), raw)
		assert.Equal(t, want, s, raw)
	}
}

func TestFAQItem_MarshalKeepsRaw(t *testing.T) {
	raw := `{"id":"x","title":"T","extra":{"k":1}}`
	var it FAQItem
	require.NoError(t, json.Unmarshal([]byte(raw), &it))
	out, err := json.Marshal(it)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	built := FAQItem{ID: "y", Title: "Built", Analysis: &Analysis{Score: NewScore(10)}}
	out, err = json.Marshal(built)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"y","url":"","title":"Built","analysis":{"summary":"","strengths":"","weaknesses":"","score":10}}`, string(out))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Analyze ")
	require.NoError(t, err)
	assert.Equal(t, ActionAnalyze, a)
	_, err = ParseAction("delete")
	assert.Error(t, err)
}
