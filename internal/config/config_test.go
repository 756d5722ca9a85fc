package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultFetchTimeout, cfg.Feeds.FetchTimeout)
	assert.Equal(t, DefaultArticleLimit, cfg.Feeds.DefaultArticleLimit)
	assert.Equal(t, DefaultLLMBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, DefaultModel, cfg.LLM.DefaultModel)
}

func TestLoad_Durations(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
feeds:
  fetch_timeout: "5s"
  label_timeout: "3s"
clip:
  timeout: "8s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Feeds.FetchTimeout)
	assert.Equal(t, 3*time.Second, cfg.Feeds.LabelTimeout)
	assert.Equal(t, 8*time.Second, cfg.Clip.Timeout)
}

func TestLoad_ExplicitZeroRedirects(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
clip:
  max_redirects: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Clip.MaxRedirects)
	assert.Equal(t, 0, *cfg.Clip.MaxRedirects)
}

func TestLoad_UnsetRedirectsStaysNil(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Clip.MaxRedirects)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
feeds:
  fetch_timeout: "not-a-duration"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch_timeout")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FEEDGATE_TEST_SECRET", "expanded-secret")

	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "${FEEDGATE_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Auth.SessionSecret)
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeTestConfig(t, `
auth:
  session_secret: "test-secret"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_secret")
}

func TestLoad_AudienceDefaults(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Auth.SessionAudiences, 3)
}

func TestLoad_AudienceListBounded(t *testing.T) {
	path := writeTestConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  session_secret: "test-secret"
  session_audiences: ["a", "b", "c", "d", "e"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.SessionAudiences)
}
