package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIDParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantID     int64
		wantErrMsg string
	}{
		{name: "valid id", path: "/clients/100", wantID: 100},
		{name: "large id", path: "/clients/9007199254740993", wantID: 9007199254740993},
		{name: "zero", path: "/clients/0", wantErrMsg: "id must be a positive integer"},
		{name: "negative", path: "/clients/-4", wantErrMsg: "id must be a positive integer"},
		{name: "not a number", path: "/clients/abc", wantErrMsg: "id must be a positive integer"},
		{name: "encoded space", path: "/clients/%20", wantErrMsg: "id cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotID int64
			var gotErr error
			r := chi.NewRouter()
			r.Get("/clients/{id}", func(_ http.ResponseWriter, req *http.Request) {
				gotID, gotErr = GetIDParam(req, "id")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantErrMsg != "" {
				require.Error(t, gotErr)
				assert.Equal(t, tt.wantErrMsg, gotErr.Error())
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	t.Parallel()

	type payload struct {
		Text string `json:"text"`
	}

	tests := []struct {
		name       string
		body       string
		want       string
		wantErrMsg string
	}{
		{name: "valid", body: `{"text":"hello"}`, want: "hello"},
		{name: "empty", body: ``, wantErrMsg: "request body is empty"},
		{name: "unknown field", body: `{"txt":"hello"}`, wantErrMsg: "unknown field"},
		{name: "trailing object", body: `{"text":"a"}{"text":"b"}`, wantErrMsg: "single JSON object"},
		{name: "malformed", body: `{"text":`, wantErrMsg: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var got payload
			err := DecodeJSONBody(httptest.NewRecorder(), req, &got)
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "sync run already in progress", http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"sync run already in progress"}`, rr.Body.String())
}
