package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynerotech/evalforward/config"
	"github.com/zynerotech/evalforward/logger"
)

// isolate очищает переменные окружения, влияющие на конфигурацию
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_ENV", "APP_FORWARDER_BACKEND_URL", LegacyBackendURLEnv, "APP_LOGGER_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	prev := logger.GetGlobal()
	t.Cleanup(func() {
		_ = logger.SetComponentLevels(nil)
		logger.SetGlobal(prev)
	})
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeResult(t *testing.T, out string) map[string]any {
	t.Helper()
	var env map[string]map[string]any
	require.NoError(t, sonic.Unmarshal([]byte(out), &env))
	require.Contains(t, env, "result")
	return env["result"]
}

func newBackend(t *testing.T, status int, body string) (*httptest.Server, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		received <- data
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, received
}

func TestSendFromStdin(t *testing.T) {
	isolate(t)
	backend, received := newBackend(t, http.StatusOK, `{"success":true,"filename":"evaluation_1.json"}`)

	out, err := execute(t, `{"arg1":{"result0":{"score":0.9}}}`, "send", "--backend-url", backend.URL)
	require.NoError(t, err)

	assert.JSONEq(t, `{"result0":{"score":0.9}}`, string(<-received))
	result := decodeResult(t, out)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "evaluation_1.json", result["details"].(map[string]any)["filename"])
}

func TestSendFromFileRaw(t *testing.T) {
	isolate(t)
	backend, received := newBackend(t, http.StatusOK, `{}`)

	path := filepath.Join(t.TempDir(), "eval.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"arg1":{"a":1}}`), 0o600))

	_, err := execute(t, "", "send", path, "--raw", "--backend-url", backend.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"arg1":{"a":1}}`, string(<-received))
}

func TestSendFailureEnvelope(t *testing.T) {
	isolate(t)
	backend, _ := newBackend(t, http.StatusInternalServerError, "server error")

	out, err := execute(t, `{}`, "send", "--backend-url", backend.URL)
	require.NoError(t, err, "failure envelopes exit 0 by default")

	result := decodeResult(t, out)
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["message"], "500")
	assert.Equal(t, "server error", result["details"])
}

func TestSendFailOnError(t *testing.T) {
	isolate(t)
	backend, _ := newBackend(t, http.StatusBadGateway, "bad gateway")

	out, err := execute(t, `{}`, "send", "--fail-on-error", "--backend-url", backend.URL)
	assert.ErrorIs(t, err, errForwardFailed)
	assert.Equal(t, false, decodeResult(t, out)["success"])
}

func TestSendInvalidJSON(t *testing.T) {
	isolate(t)

	out, err := execute(t, `{broken`, "send", "--backend-url", "http://127.0.0.1:1")
	require.NoError(t, err)

	result := decodeResult(t, out)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "encode", result["kind"])
}

func TestSendMissingFile(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "send", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read input")
}

func TestLegacyBackendURLEnv(t *testing.T) {
	isolate(t)
	backend, received := newBackend(t, http.StatusOK, `{}`)
	t.Setenv(LegacyBackendURLEnv, backend.URL)

	_, err := execute(t, `{"x":1}`, "send")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(<-received))
}

func TestBackendURLPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv(LegacyBackendURLEnv, "http://legacy:3000")
	t.Setenv("APP_FORWARDER_BACKEND_URL", "http://prefixed:3000")

	cfg, _, err := loadConfig(loadOptions{envFiles: []string{filepath.Join(t.TempDir(), "x.env")}})
	require.NoError(t, err)
	assert.Equal(t, "http://prefixed:3000", cfg.Forwarder.BackendURL)

	cfg, _, err = loadConfig(loadOptions{
		envFiles:   []string{filepath.Join(t.TempDir(), "x.env")},
		backendURL: "http://flag:3000",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://flag:3000", cfg.Forwarder.BackendURL)
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, _, err := loadConfig(loadOptions{envFiles: []string{filepath.Join(t.TempDir(), "x.env")}})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Forwarder.BackendURL)
	assert.Equal(t, "/api/save-evaluation", cfg.Forwarder.Path)
	assert.Equal(t, "arg1", cfg.Forwarder.UnwrapKey)
	assert.Equal(t, 100, cfg.Forwarder.PreviewLimit)
	assert.Zero(t, cfg.Transport.Timeout)
	assert.Equal(t, "stderr", cfg.Logger.Output)

	assert.Nil(t, cfg.ServerConfig(), "server only in serve mode")
	assert.Nil(t, cfg.PluginConfig())
	assert.Nil(t, cfg.MetricsConfig())
}

func TestLoadConfigDotEnvAndFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(LegacyBackendURLEnv+"=http://from-dotenv:3000\n"), 0o600))

	cfgFile := filepath.Join(dir, "service.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
forwarder:
  path: /api/custom
  unwrap_key: data
transport:
  timeout: 5s
`), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv(LegacyBackendURLEnv) })

	cfg, _, err := loadConfig(loadOptions{configPath: cfgFile, envFiles: []string{envFile}})
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv:3000", cfg.Forwarder.BackendURL)
	assert.Equal(t, "/api/custom", cfg.Forwarder.Path)
	assert.Equal(t, "data", cfg.Forwarder.UnwrapKey)
	assert.Equal(t, "5s", cfg.Transport.Timeout.String())
}

func TestLoadConfigExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, _, err := loadConfig(loadOptions{configPath: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	isolate(t)

	_, _, err := loadConfig(loadOptions{
		envFiles:   []string{filepath.Join(t.TempDir(), "x.env")},
		backendURL: "localhost:3000",
	})
	assert.Error(t, err)
}

func TestReloadLogLevels(t *testing.T) {
	isolate(t)
	logger.SetGlobal(logger.NewWithWriter(logger.Config{Level: "info"}, io.Discard))

	loader := config.NewLoader("")
	loader.Set("logger.level", "error")
	loader.Set("logger.components", map[string]string{"forwarder": "debug"})

	reloadLogLevels(loader)
	assert.Equal(t, "error", logger.GetLevel())
	assert.Equal(t, "debug", logger.GetComponentLevel("forwarder"))

	loader.Set("logger.level", "loud")
	loader.Set("logger.components", map[string]string{})
	reloadLogLevels(loader)
	assert.Equal(t, "error", logger.GetLevel(), "invalid level is ignored")
	assert.Equal(t, "error", logger.GetComponentLevel("forwarder"), "component falls back to global")
}

func TestPluginRequiresPort(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "plugin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing --port")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "evalforward dev")
}

func TestRunExitCodes(t *testing.T) {
	isolate(t)
	assert.Equal(t, 0, run(context.Background(), []string{"version"}))
	assert.Equal(t, 1, run(context.Background(), []string{"unknown-command"}))
}
