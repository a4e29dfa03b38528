package util

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// EnvBackendURL is the key looked up in every source.
	EnvBackendURL = "BACKEND_BASE_URL"
	// EnvSecretsFile overrides the secrets file location.
	EnvSecretsFile = "FAQSCORER_SECRETS_FILE"
	// DefaultBackendURL is used when no source provides a value.
	DefaultBackendURL = "http://localhost:8000"
)

// Source names where the backend URL came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceSecrets Source = "secrets"
	SourceEnv     Source = "env"
	SourceDotenv  Source = "dotenv"
	SourceDefault Source = "default"
)

// ResolveOptions controls backend URL resolution. Zero values pick the
// conventional locations.
type ResolveOptions struct {
	// Flag is an explicit value from the command line; it beats every source.
	Flag string
	// SecretsPaths are tried in order; the first file that yields a value wins.
	SecretsPaths []string
	// DotenvPath is the .env file consulted after the process environment.
	DotenvPath string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Warn receives non-fatal problems such as a malformed secrets file.
	Warn func(format string, args ...any)
}

// Resolved is the outcome of ResolveBackendURL.
type Resolved struct {
	URL    string
	Source Source
	// Path is the file the value was read from, if any.
	Path string
}

// DefaultSecretsPaths lists the project and user secrets files, project first.
func DefaultSecretsPaths(getenv func(string) string) []string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := strings.TrimSpace(getenv(EnvSecretsFile)); p != "" {
		return []string{p}
	}
	paths := []string{filepath.Join(".streamlit", "secrets.toml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".streamlit", "secrets.toml"))
	}
	return paths
}

// ResolveBackendURL picks the backend base URL with precedence
// flag > secrets file > environment > .env file > DefaultBackendURL.
// Blank values are skipped and trailing slashes are removed.
func ResolveBackendURL(opts ResolveOptions) (Resolved, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	warn := opts.Warn
	if warn == nil {
		warn = func(string, ...any) {}
	}

	res := resolve(opts, getenv, warn)
	if err := ValidateBackendURL(res.URL); err != nil {
		return res, err
	}
	return res, nil
}

func resolve(opts ResolveOptions, getenv func(string) string, warn func(string, ...any)) Resolved {
	if v := NormalizeBackendURL(opts.Flag); v != "" {
		return Resolved{URL: v, Source: SourceFlag}
	}

	paths := opts.SecretsPaths
	if paths == nil {
		paths = DefaultSecretsPaths(getenv)
	}
	for _, p := range paths {
		v, err := readSecret(p)
		if err != nil {
			warn("skipping secrets file %s: %v", p, err)
			continue
		}
		if v = NormalizeBackendURL(v); v != "" {
			return Resolved{URL: v, Source: SourceSecrets, Path: p}
		}
	}

	if v := NormalizeBackendURL(getenv(EnvBackendURL)); v != "" {
		return Resolved{URL: v, Source: SourceEnv}
	}

	dotenv := opts.DotenvPath
	if dotenv == "" {
		dotenv = ".env"
	}
	if vals, err := godotenv.Read(dotenv); err == nil {
		if v := NormalizeBackendURL(vals[EnvBackendURL]); v != "" {
			return Resolved{URL: v, Source: SourceDotenv, Path: dotenv}
		}
	} else if !os.IsNotExist(err) {
		warn("skipping dotenv file %s: %v", dotenv, err)
	}

	return Resolved{URL: DefaultBackendURL, Source: SourceDefault}
}

// readSecret returns the backend URL from a TOML secrets file. A missing file
// yields an empty value and no error.
func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var secrets map[string]any
	if err := toml.Unmarshal(data, &secrets); err != nil {
		return "", err
	}
	raw, ok := secrets[EnvBackendURL]
	if !ok || raw == nil {
		return "", nil
	}
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return fmt.Sprint(raw), nil
}

// NormalizeBackendURL trims whitespace and trailing slashes.
func NormalizeBackendURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ValidateBackendURL requires an absolute http(s) URL with a host.
func ValidateBackendURL(raw string) error {
	if raw == "" {
		return NewConfigError("backend URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewConfigError(fmt.Sprintf("backend URL %q is invalid: %v", raw, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewConfigError(fmt.Sprintf("backend URL %q must use http or https", raw))
	}
	if u.Host == "" {
		return NewConfigError(fmt.Sprintf("backend URL %q has no host", raw))
	}
	return nil
}
