package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSWithOptions(t *testing.T) {
	tests := []struct {
		options         *CORSOptions
		expectedHeaders map[string]string
		name            string
		method          string
		origin          string
		preflight       bool
		expectedStatus  int
	}{
		{
			name:    "default options",
			method:  http.MethodGet,
			options: nil,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Methods":     "GET,POST,OPTIONS",
				"Access-Control-Allow-Headers":     "Content-Type,Accept,Origin,X-Request-Id",
				"Access-Control-Allow-Credentials": "",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "listed origin is echoed",
			method: http.MethodGet,
			origin: "http://dashboard.local",
			options: &CORSOptions{
				AllowedOrigins:   []string{"http://dashboard.local"},
				AllowedMethods:   []string{"GET", "POST"},
				AllowedHeaders:   []string{"Content-Type"},
				AllowCredentials: true,
			},
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "http://dashboard.local",
				"Access-Control-Allow-Methods":     "GET,POST",
				"Access-Control-Allow-Headers":     "Content-Type",
				"Access-Control-Allow-Credentials": "true",
				"Vary":                             "Origin",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "unlisted origin",
			method: http.MethodGet,
			origin: "http://evil.example",
			options: &CORSOptions{
				AllowedOrigins: []string{"http://dashboard.local"},
			},
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin": "",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "empty options",
			method:  http.MethodGet,
			options: &CORSOptions{},
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "",
				"Access-Control-Allow-Methods": "",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "preflight request",
			method:    http.MethodOptions,
			preflight: true,
			options:   nil,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "plain options request reaches the handler",
			method:         http.MethodOptions,
			options:        nil,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com/api/levels", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()

			handler := CORSWithOptions(tt.options)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rr, req)

			for header, expected := range tt.expectedHeaders {
				assert.Equal(t, expected, rr.Header().Get(header), "header %s", header)
			}
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
