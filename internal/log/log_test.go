package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Tint")
	require.NoError(t, err)
	assert.Equal(t, FormatTint, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: FormatJSON, Output: &buf, Component: ComponentEngine})
	l.Info("hello", FieldItemID, "a")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "engine", rec[FieldComponent])
	assert.Equal(t, "a", rec[FieldItemID])
	assert.Equal(t, ComponentEngine, l.Component())
}

func TestTintHandlerWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, FormatTint, slog.LevelInfo)).Info("plain")
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "\x1b[", "no color codes when not a terminal")
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatJSON, Output: &buf})
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithRollover(1, 3, 2).WithError(nil).WithOperation(OpRollover)
	assert.Equal(t, 3, f[FieldToMonth])
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), 8)
}
