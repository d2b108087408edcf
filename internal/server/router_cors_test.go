package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddlewareAllowsAnyOriginAndSecretHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware(testSecretHeader))
	router.POST("/append", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/append", http.NoBody)
	request.Header.Set("Origin", "https://chat.example.org")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", testSecretHeader)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.org" {
		t.Fatalf("expected origin to be echoed, got %q", got)
	}
	allowHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), strings.ToLower(testSecretHeader)) {
		t.Fatalf("expected Access-Control-Allow-Headers to include %s, got %q", testSecretHeader, allowHeaders)
	}
	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	for _, method := range []string{http.MethodPost, http.MethodDelete, http.MethodPatch} {
		if !strings.Contains(allowMethods, method) {
			t.Fatalf("expected %s in allowed methods, got %q", method, allowMethods)
		}
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be enabled")
	}
}

func TestCORSMiddlewareAllowsArbitraryRequestedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware(testSecretHeader))
	router.POST("/append", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/append", http.NoBody)
	request.Header.Set("Origin", "https://chat.example.org")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "x-openai-conversation-id, x-custom-trace")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	allowHeaders := strings.Split(recorder.Header().Get("Access-Control-Allow-Headers"), ",")
	for _, want := range []string{"X-Openai-Conversation-Id", "X-Custom-Trace", "Content-Type", "X-Api-Key"} {
		found := false
		for _, header := range allowHeaders {
			if header == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %s in Access-Control-Allow-Headers, got %v", want, allowHeaders)
		}
	}
}

func TestAllowedRequestHeadersDeduplicates(t *testing.T) {
	got := allowedRequestHeaders([]string{"Content-Type", "X-API-Key"}, "content-type, x-api-key ,, x-extra")
	if got != "Content-Type,X-Api-Key,X-Extra" {
		t.Fatalf("unexpected allowed headers %q", got)
	}
}
