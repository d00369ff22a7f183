// ABOUTME: Tests for HTTP auth middleware and bearer token extraction
// ABOUTME: Covers header and query-param credentials and rejection paths

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{name: "bearer header", header: "Bearer abc123", want: "abc123"},
		{name: "raw header rejected", header: "abc123", want: ""},
		{name: "basic scheme rejected", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "query fallback", query: "abc123", want: "abc123"},
		{name: "header wins over query", header: "Bearer fromheader", query: "fromquery", want: "fromheader"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/ws"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			if got := ExtractToken(r); got != tt.want {
				t.Errorf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_AttachesIdentity(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate(Identity{ID: "42", Name: "Ada"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var got *Identity
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got == nil || got.ID != "42" {
		t.Errorf("identity in context = %+v, want ID 42", got)
	}
}

func TestMiddleware_RejectsMissingAndInvalid(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, token := range []string{"", "not-a-jwt"} {
		r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	}
}
