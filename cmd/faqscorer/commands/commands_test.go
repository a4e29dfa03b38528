package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faqPayload = `{
  "items": [
    {"id": "a1", "url": "https://docs.example.com/a", "title": "Reset password",
     "content": "How to reset", "analysis": {"summary": "Resetting", "strengths": "clear", "weaknesses": "none", "score": 81}},
    {"id": "b2", "url": "https://docs.example.com/b", "title": "Invoices",
     "content": "Billing", "analysis": {"summary": "Invoices", "strengths": "ok", "weaknesses": "long", "score": 35}},
    {"id": "c3", "url": "https://docs.example.com/c", "title": "Raw page", "html": "scraped text"}
  ],
  "count": 3
}`

type fakeBackend struct {
	mu    sync.Mutex
	posts []string
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"status":"ok","counts":{"raw":3,"clean":2,"scored":2},"time_utc":"2025-01-01T00:00:00Z"}`))
		case r.URL.Path == "/faq":
			assert.Equal(t, "score", r.URL.Query().Get("sort"))
			_, _ = w.Write([]byte(faqPayload))
		case r.Method == http.MethodPost && r.URL.Path == "/clean":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"No raw data found. Run /scrape first."}`))
		case r.Method == http.MethodPost:
			f.mu.Lock()
			f.posts = append(f.posts, r.URL.RequestURI())
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"message":"done","created":2,"updated":1,"skipped":0,"errors":0}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newBackend(t *testing.T) (*fakeBackend, string) {
	f := &fakeBackend{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FAQSCORER_SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("BACKEND_BASE_URL", "")
	resetFlags(rootCmd)
	rt = &app{}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

func TestHealth(t *testing.T) {
	_, url := newBackend(t)
	out, err := execute(t, "health", "--backend-url", url+"/", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend OK ("+url+")")
	assert.Contains(t, out, "Raw: 3  Clean: 2  Scored: 2")
}

func TestHealth_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := execute(t, "health", "--backend-url", srv.URL, "--no-history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestList_FiltersAndSorts(t *testing.T) {
	_, url := newBackend(t)
	out, err := execute(t, "list", "--backend-url", url, "--no-history")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Reset password"), strings.Index(out, "Invoices"))
	assert.NotContains(t, out, "Raw page")
	assert.Contains(t, out, "Shown: 2 / 3 (scored 2, mean 58.0)")

	out, err = execute(t, "list", "--backend-url", url, "--no-history", "--all", "--sort", "title_asc", "--min", "50")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Raw page"), strings.Index(out, "Reset password"))
	assert.NotContains(t, out, "Invoices")
	assert.Contains(t, out, "Not scored")

	out, err = execute(t, "list", "--backend-url", url, "--no-history", "-q", "BILLING")
	require.NoError(t, err)
	assert.Contains(t, out, "Shown: 1 / 3")

	_, err = execute(t, "list", "--backend-url", url, "--no-history", "--sort", "random")
	assert.Error(t, err)
}

func TestActions_RecordHistory(t *testing.T) {
	f, url := newBackend(t)
	dsn := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "analyze", "--force", "--backend-url", url, "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "ANALYZE OK - created=2 updated=1 skipped=0 errors=0")

	_, err = execute(t, "scrape", "--backend-url", url, "--dsn", dsn)
	require.NoError(t, err)

	_, err = execute(t, "clean", "--backend-url", url, "--dsn", dsn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clean failed")

	assert.Equal(t, []string{"/analyze?force=true", "/scrape"}, f.posts)

	out, err = execute(t, "history", "--backend-url", url, "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "analyze")
	assert.Contains(t, out, "scrape")
	assert.Contains(t, out, "HTTP 400 calling POST /clean")
	assert.Contains(t, out, "Score snapshots")
}

func TestExport_Stdout(t *testing.T) {
	_, url := newBackend(t)
	out, err := execute(t, "export", "--backend-url", url, "--no-history", "-f", "csv", "-o", "-")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,title,score,summary,strengths,weaknesses,url", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a1,Reset password,81"))

	dir := t.TempDir()
	out, err = execute(t, "export", "--backend-url", url, "--no-history", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 items to "+filepath.Join(dir, "faq_filtered.json"))
}

func TestConfig_ShowsSource(t *testing.T) {
	out, err := execute(t, "config", "--backend-url", "https://faq.example.com/api/", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "https://faq.example.com/api\n")
	assert.Contains(t, out, "backend_source   flag")
	assert.Contains(t, out, "history.enabled  false")
}

// unsetenv removes key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestConfig_ReadsDotenv(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "from-dotenv.db")
	dotenv := "DATABASE_URL=" + dsn + "\nFAQSCORER_REDIS=localhost:6390\nBACKEND_BASE_URL=https://faq.example.com/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	unsetenv(t, "DATABASE_URL")
	unsetenv(t, "FAQSCORER_REDIS")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "history.dsn      "+dsn+"\n")
	assert.Contains(t, out, "cache.redis      localhost:6390\n")
	assert.Contains(t, out, "backend_url      https://faq.example.com\n")
	assert.Contains(t, out, "backend_source   dotenv (.env)")

	other := filepath.Join(dir, "flag.db")
	out, err = execute(t, "config", "--dsn", other)
	require.NoError(t, err)
	assert.Contains(t, out, "history.dsn      "+other+"\n")
}

func TestUsesTerminal(t *testing.T) {
	assert.True(t, usesTerminal(rootCmd))
	assert.True(t, usesTerminal(uiCmd))
	assert.False(t, usesTerminal(listCmd))
	assert.False(t, usesTerminal(webCmd))
}

func TestInvalidBackendURL(t *testing.T) {
	_, err := execute(t, "config", "--backend-url", "ftp://nope")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	out, err := execute(t, "migrate", "up", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "applied to sqlite3 (version 2")

	out, err = execute(t, "migrate", "up", "--dsn", dsn)
	require.NoError(t, err, "no change is not an error")
	assert.Contains(t, out, "version 2")

	out, err = execute(t, "migrate", "down", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "version 1")

	_, err = execute(t, "migrate", "sideways", "--dsn", dsn)
	assert.Error(t, err)
}
