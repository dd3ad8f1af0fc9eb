package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flora-crawler/pkg/config"
	"flora-crawler/pkg/storage"
	"flora-crawler/pkg/utils"
)

func noEnv(string) (string, bool) { return "", false }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLoadConfig_ValidFile(t *testing.T) {
	content := `
feed_url: "http://www.gardening.cornell.edu/homegardening/scenefc2d.html"
min_delay: 2s
max_delay: 5s
persistence:
  endpoint: "http://localhost:9090/flower"
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, "http://www.gardening.cornell.edu/homegardening/scenefc2d.html", cfg.FeedURL)
	assert.Equal(t, "http://localhost:9090/flower", cfg.Persistence.Endpoint)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.FeedURL)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644))

	_, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDoValidate_OK(t *testing.T) {
	content := `
feed_url: "http://www.gardening.cornell.edu/homegardening/scenefc2d.html"
base_url: "http://www.gardening.cornell.edu/homegardening"
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, noEnv, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN: base_url")
	assert.Contains(t, stdout.String(), "list: true")
	assert.Contains(t, stdout.String(), "Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_FeedFromEnv(t *testing.T) {
	env := map[string]string{"FEED": "http://example.com/scene1.html", "IS_NOT_LIST": "1"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	var stdout, stderr bytes.Buffer
	exitCode := doValidate("", lookup, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "OK: feed http://example.com/scene1.html (list: false)")
}

func TestDoValidate_MissingFeed(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("", noEnv, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "feed_url is required")
}

func TestDoValidate_FileNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent/config.yaml", noEnv, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestOpenRecordStore_HTTPBackend(t *testing.T) {
	cfg := &config.AppConfig{FeedURL: "http://example.com/list.html"}
	_, err := cfg.Validate()
	require.NoError(t, err)

	store, err := openRecordStore(context.Background(), cfg, &http.Client{}, logrus.NewEntry(quietLogger()))
	require.NoError(t, err)
	assert.IsType(t, &storage.HTTPRecordStore{}, store)
	assert.NoError(t, store.Close())
}

func TestOpenRecordStore_UnknownBackend(t *testing.T) {
	cfg := &config.AppConfig{Persistence: config.PersistenceConfig{Backend: "mongo"}}
	_, err := openRecordStore(context.Background(), cfg, &http.Client{}, logrus.NewEntry(quietLogger()))
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestFeedHost(t *testing.T) {
	assert.Equal(t, "www.gardening.cornell.edu", feedHost("http://www.gardening.cornell.edu/homegardening/scenefc2d.html"))
	assert.Equal(t, "feed", feedHost("::not a url"))
}

func TestExitCode(t *testing.T) {
	log := quietLogger()
	assert.Equal(t, 0, exitCode(nil, log))
	assert.Equal(t, 0, exitCode(context.Canceled, log))
	assert.Equal(t, 1, exitCode(context.DeadlineExceeded, log))
	assert.Equal(t, 1, exitCode(errors.New("boom"), log))
}

func TestSetupLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, setupLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, setupLogger("nonsense").GetLevel())
}
