package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/observability"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"success"}`, w.Body.String())
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		body   string
	}{
		{
			name:   "error",
			write:  func(w http.ResponseWriter) { WriteError(w, http.StatusConflict, errors.New("conflict")) },
			status: http.StatusConflict,
			body:   `{"error":"conflict"}`,
		},
		{
			name:   "bad request",
			write:  func(w http.ResponseWriter) { WriteBadRequest(w, "invalid input") },
			status: http.StatusBadRequest,
			body:   `{"error":"invalid input"}`,
		},
		{
			name:   "not found",
			write:  func(w http.ResponseWriter) { WriteNotFoundError(w, "no such message") },
			status: http.StatusNotFound,
			body:   `{"error":"no such message"}`,
		},
		{
			name:   "internal",
			write:  func(w http.ResponseWriter) { WriteInternalError(w, errors.New("boom")) },
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
		},
		{
			name: "detailed",
			write: func(w http.ResponseWriter) {
				WriteDetailedError(w, http.StatusBadRequest, errors.New("bad rules"), map[string]string{"type": "demo.v1.Page"})
			},
			status: http.StatusBadRequest,
			body:   `{"error":"bad rules","details":{"type":"demo.v1.Page"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestParseJSON(t *testing.T) {
	var dest struct {
		Message string `json:"message"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"demo.v1.Page"}`))
	require.True(t, ParseJSONOrError(httptest.NewRecorder(), r, &dest))
	assert.Equal(t, "demo.v1.Page", dest.Message)

	w := httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestReadBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"limit":1}`))
	body, err := ReadBody(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, `{"limit":1}`, string(body))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", DefaultMaxBodyBytes+1)))
	_, err = ReadBody(httptest.NewRecorder(), r)
	assert.Error(t, err)
}

func TestParsePathString(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"message": "demo.v1.Page"})
	val, ok := ParsePathStringOrError(httptest.NewRecorder(), r, "message")
	assert.True(t, ok)
	assert.Equal(t, "demo.v1.Page", val)

	w := httptest.NewRecorder()
	_, ok = ParsePathStringOrError(w, httptest.NewRequest(http.MethodGet, "/", nil), "message")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?mode=fail_fast", nil)
	assert.Equal(t, "fail_fast", ParseQueryString(r, "mode", "accumulate_all"))
	assert.Equal(t, "x", ParseQueryString(r, "missing", "x"))
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x", nil)

	val, err := ParseQueryInt(r, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(r, "missing", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, val)

	_, err = ParseQueryInt(r, "bad", 100)
	assert.EqualError(t, err, "invalid integer for query param bad: x")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, "abc", seen)
}

func TestLoggingAndRecovery(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	handler := Chain(
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		RecoveryMiddleware(logger),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	r.Header.Set(RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "PANIC recovered in HTTP handler", hook.Entries[0].Message)
	assert.Equal(t, "HTTP request", hook.Entries[1].Message)
	assert.Equal(t, http.StatusInternalServerError, hook.Entries[1].Data["status"])
	assert.Equal(t, "req-7", hook.Entries[1].Data["request_id"])
}
