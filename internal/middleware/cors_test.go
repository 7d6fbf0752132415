package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(method, "/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(rr, req)
	return rr
}

func TestCORSWildcardEchoesOriginWithoutCredentials(t *testing.T) {
	rr := serveCORS([]string{"*"}, http.MethodGet, "https://example.com")

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Accept, Accept-Encoding, Authorization, Content-Type, Origin" {
		t.Fatalf("unexpected allow-headers %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("credentials must not be allowed for wildcard origins")
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected request to reach next handler, got %d", rr.Code)
	}
}

func TestCORSExplicitOriginAllowsCredentials(t *testing.T) {
	rr := serveCORS([]string{"https://app.local"}, http.MethodGet, "https://app.local")

	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials for explicit origin")
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	rr := serveCORS([]string{"https://app.local"}, http.MethodGet, "https://evil.example")

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin, got %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	rr := serveCORS([]string{"*"}, http.MethodOptions, "https://example.com")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected allow-methods on preflight")
	}
}
