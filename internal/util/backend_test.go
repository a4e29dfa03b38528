package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestResolveBackendURL_Precedence(t *testing.T) {
	dir := t.TempDir()
	secrets := writeFile(t, dir, ".streamlit/secrets.toml", `BACKEND_BASE_URL = "https://secrets.example.com/"`)
	dotenv := writeFile(t, dir, ".env", "BACKEND_BASE_URL=http://dotenv.example.com\n")
	env := envOf(map[string]string{EnvBackendURL: "http://env.example.com//"})

	res, err := ResolveBackendURL(ResolveOptions{SecretsPaths: []string{secrets}, DotenvPath: dotenv, Getenv: env})
	require.NoError(t, err)
	assert.Equal(t, "https://secrets.example.com", res.URL)
	assert.Equal(t, SourceSecrets, res.Source)
	assert.Equal(t, secrets, res.Path)

	res, err = ResolveBackendURL(ResolveOptions{SecretsPaths: []string{}, DotenvPath: dotenv, Getenv: env})
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", res.URL)
	assert.Equal(t, SourceEnv, res.Source)

	res, err = ResolveBackendURL(ResolveOptions{SecretsPaths: []string{}, DotenvPath: dotenv, Getenv: envOf(nil)})
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv.example.com", res.URL)
	assert.Equal(t, SourceDotenv, res.Source)

	res, err = ResolveBackendURL(ResolveOptions{SecretsPaths: []string{}, DotenvPath: filepath.Join(dir, "missing.env"), Getenv: envOf(nil)})
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendURL, res.URL)
	assert.Equal(t, SourceDefault, res.Source)

	res, err = ResolveBackendURL(ResolveOptions{Flag: " http://flag.example.com/ ", SecretsPaths: []string{secrets}, Getenv: env})
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example.com", res.URL)
	assert.Equal(t, SourceFlag, res.Source)
}

func TestResolveBackendURL_SkipsBlankAndBrokenSources(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.toml", "BACKEND_BASE_URL = ")
	blank := writeFile(t, dir, "blank.toml", `BACKEND_BASE_URL = "   "`)
	other := writeFile(t, dir, "other.toml", `SOMETHING_ELSE = "x"`)

	var warnings []string
	res, err := ResolveBackendURL(ResolveOptions{
		SecretsPaths: []string{broken, blank, other, filepath.Join(dir, "nope.toml")},
		DotenvPath:   filepath.Join(dir, "missing.env"),
		Getenv:       envOf(map[string]string{EnvBackendURL: "  "}),
		Warn:         func(format string, args ...any) { warnings = append(warnings, format) },
	})
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Len(t, warnings, 1)
}

func TestResolveBackendURL_NonStringSecret(t *testing.T) {
	dir := t.TempDir()
	secrets := writeFile(t, dir, "secrets.toml", "BACKEND_BASE_URL = 42\n")
	_, err := ResolveBackendURL(ResolveOptions{SecretsPaths: []string{secrets}, Getenv: envOf(nil)})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveBackendURL_InvalidURL(t *testing.T) {
	for _, raw := range []string{"localhost:8000", "ftp://example.com", "http://"} {
		_, err := ResolveBackendURL(ResolveOptions{Flag: raw, Getenv: envOf(nil)})
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, raw)
	}
}

func TestDefaultSecretsPaths_EnvOverride(t *testing.T) {
	paths := DefaultSecretsPaths(envOf(map[string]string{EnvSecretsFile: "/etc/faq/secrets.toml"}))
	assert.Equal(t, []string{"/etc/faq/secrets.toml"}, paths)

	paths = DefaultSecretsPaths(envOf(nil))
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(".streamlit", "secrets.toml"), paths[0])
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "faqscorer.yaml", `
timeout: 30s
cache:
  ttl: 2m
  size: 8
  redis_addr: localhost:6379
log:
  level: debug
theme: dracula
history:
  enabled: false
web:
  listen: ":9000"
`)
	cfg, err := LoadSettings(Defaults(), p)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.CacheSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "faqscorer.log", cfg.LogFile)
	assert.Equal(t, "dracula", cfg.Theme)
	assert.False(t, cfg.HistoryEnabled)
	assert.Equal(t, ":9000", cfg.WebListen)
}

func TestLoadSettings_MissingFiles(t *testing.T) {
	_, err := LoadSettings(Defaults(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := LoadSettings(Defaults(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
