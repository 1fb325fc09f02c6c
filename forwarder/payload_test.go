package forwarder

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fieldName string

func TestDetect(t *testing.T) {
	inner := map[string]any{"result0": 1}

	tests := []struct {
		name       string
		input      any
		key        string
		wantFormat Format
		want       any
	}{
		{name: "wrapped", input: map[string]any{"arg1": inner}, key: "arg1", wantFormat: FormatWrapped, want: inner},
		{name: "wrapped nil value", input: map[string]any{"arg1": nil}, key: "arg1", wantFormat: FormatWrapped, want: nil},
		{name: "mapping without key", input: inner, key: "arg1", wantFormat: FormatRaw, want: inner},
		{name: "custom key", input: map[string]any{"data": 5}, key: "data", wantFormat: FormatWrapped, want: 5},
		{name: "unwrap disabled", input: map[string]any{"arg1": inner}, key: "", wantFormat: FormatRaw, want: map[string]any{"arg1": inner}},
		{name: "non mapping", input: []any{1, 2}, key: "arg1", wantFormat: FormatRaw, want: []any{1, 2}},
		{name: "nil input", input: nil, key: "arg1", wantFormat: FormatRaw, want: nil},
		{name: "typed string map", input: map[string]string{"arg1": "x"}, key: "arg1", wantFormat: FormatWrapped, want: "x"},
		{name: "typed int map", input: map[string]int{"arg1": 1}, key: "arg1", wantFormat: FormatWrapped, want: 1},
		{name: "typed map without key", input: map[string]int{"other": 1}, key: "arg1", wantFormat: FormatRaw, want: map[string]int{"other": 1}},
		{name: "named key type", input: map[fieldName]any{"arg1": inner}, key: "arg1", wantFormat: FormatWrapped, want: inner},
		{name: "non string keys", input: map[int]string{1: "a"}, key: "arg1", wantFormat: FormatRaw, want: map[int]string{1: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, format := Detect(tt.input, tt.key)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Preview(map[string]any{"a": 1}, 100))

	long := map[string]any{"text": strings.Repeat("x", 300)}
	p := Preview(long, 100)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.Equal(t, 103, len([]rune(p)))

	// limit counts characters, not bytes
	p = Preview("привет мир", 4)
	assert.Equal(t, `"при...`, p)

	assert.Equal(t, `{"a":1}`, Preview(map[string]any{"a": 1}, 0))
	assert.Contains(t, Preview(make(chan int), 10), "unencodable")
}

func TestEncodeSortsKeys(t *testing.T) {
	body, err := encode(map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 0, "y": 1}})
	assert.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":1,"z":0}}`, string(body))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "https", mutate: func(c *Config) { c.BackendURL = "https://viz.example.com" }},
		{name: "empty url", mutate: func(c *Config) { c.BackendURL = "" }, wantErr: true},
		{name: "bad scheme", mutate: func(c *Config) { c.BackendURL = "ftp://host" }, wantErr: true},
		{name: "no host", mutate: func(c *Config) { c.BackendURL = "http://" }, wantErr: true},
		{name: "relative path", mutate: func(c *Config) { c.Path = "api/save" }, wantErr: true},
		{name: "negative preview", mutate: func(c *Config) { c.PreviewLimit = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() = %v", err)
		})
	}
}

func TestConfigEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:3000/api/save-evaluation", cfg.Endpoint())

	cfg.BackendURL = "http://viz:8080/"
	assert.Equal(t, "http://viz:8080/api/save-evaluation", cfg.Endpoint())
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &Error{Kind: KindTransport, Err: cause}

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStatus)
	assert.Equal(t, "deliver payload: dial tcp: refused", err.Error())

	status := &Error{Kind: KindStatus, StatusCode: 503}
	assert.Equal(t, "unexpected backend status: HTTP 503", status.Error())

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestFailureEnvelope(t *testing.T) {
	env := Failure(&Error{Kind: KindStatus, StatusCode: 500, Body: []byte("server error")})
	assert.Equal(t, map[string]any{
		"result": map[string]any{
			"success":     false,
			"message":     "failed to send data: HTTP 500",
			"details":     "server error",
			"kind":        "status",
			"status_code": 500,
		},
	}, env.Map())

	env = Failure(errors.New("unexpected"))
	assert.Equal(t, KindInternal, env.Result.Kind)
	assert.Equal(t, "error processing evaluation data: internal failure: unexpected", env.Result.Message)
}

func TestSuccessEnvelopeMap(t *testing.T) {
	env := Success(map[string]any{"id": float64(1)})
	assert.Equal(t, map[string]any{
		"result": map[string]any{
			"success": true,
			"message": MessageSuccess,
			"details": map[string]any{"id": float64(1)},
		},
	}, env.Map())
}
