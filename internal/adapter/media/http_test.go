package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRESTClientSetsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newRESTClient("radarr", srv.URL, "X-Api-Key", "secret")
	if err := c.do(context.Background(), requestOptions{path: "/ping"}, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q, want %q", gotKey, "secret")
	}
}

func TestRESTClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newRESTClient("sonarr", srv.URL, "X-Api-Key", "k")
	err := c.do(context.Background(), requestOptions{path: "/api/v3/series/99"}, nil)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if svcErr.Service != "sonarr" || svcErr.StatusCode != http.StatusNotFound {
		t.Errorf("got %q status %d", svcErr.Service, svcErr.StatusCode)
	}
}

func TestRESTClientUnreachable(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newRESTClient("plex", srv.URL, "X-Plex-Token", "t")
	err := c.do(context.Background(), requestOptions{path: "/identity"}, nil)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error = %v, want ErrUnreachable", err)
	}
}

func TestRESTClientTimeoutMapsToUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newRESTClient("radarr", srv.URL, "X-Api-Key", "k")
	err := c.do(context.Background(), requestOptions{path: "/slow", timeout: 20 * time.Millisecond}, nil)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error = %v, want ErrUnreachable", err)
	}
}
