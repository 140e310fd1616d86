package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aniways/anipush/internal/apperr"
)

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "not here", http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Custom") != "" {
			w.Write([]byte("with-header"))
			return
		}
		w.Write([]byte("plain"))
	}))
	defer srv.Close()

	client, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("Success", func(t *testing.T) {
		body, err := client.Get(context.Background(), srv.URL, nil)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(body) != "plain" {
			t.Errorf("Unexpected body %q", body)
		}
	})

	t.Run("Headers Are Forwarded", func(t *testing.T) {
		body, err := client.GetText(context.Background(), srv.URL, map[string]string{"X-Custom": "1"})
		if err != nil {
			t.Fatalf("GetText failed: %v", err)
		}
		if body != "with-header" {
			t.Errorf("Unexpected body %q", body)
		}
	})

	t.Run("Non 2xx Is RequestError", func(t *testing.T) {
		_, err := client.Get(context.Background(), srv.URL+"/missing", nil)
		if !apperr.IsKind(err, apperr.RequestError) {
			t.Errorf("Expected RequestError, got %v", err)
		}
	})

	t.Run("Unreachable Host Is RequestError", func(t *testing.T) {
		_, err := client.Get(context.Background(), "http://127.0.0.1:1", nil)
		if !apperr.IsKind(err, apperr.RequestError) {
			t.Errorf("Expected RequestError, got %v", err)
		}
	})
}

func TestNewRejectsBadProxy(t *testing.T) {
	if _, err := New("://bad"); !apperr.IsKind(err, apperr.ConfigIOError) {
		t.Errorf("Expected ConfigIOError, got %v", err)
	}
}
