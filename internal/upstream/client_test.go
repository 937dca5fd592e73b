package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/fetch"
)

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url + "/", Token: "secret", Timeout: time.Second})
}

// --- Page Tests ---

func TestClient_Page(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/data/countries" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("startIndex") != "10" || r.URL.Query().Get("limit") != "2" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"data": [{"_id": "ES"}, {"_id": "FR"}], "next_start_index": 12}`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).Page(context.Background(), "countries", 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0]["_id"] != "ES" {
		t.Errorf("unexpected data: %v", page.Data)
	}
	if page.NextStartIndex == nil || *page.NextStartIndex != 12 {
		t.Errorf("expected next_start_index 12, got %v", page.NextStartIndex)
	}
}

func TestClient_PageLast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [], "next_start_index": null}`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).Page(context.Background(), "countries", 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.NextStartIndex != nil {
		t.Error("expected no next page")
	}
}

func TestClient_PageStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Page(context.Background(), "unknown", 0, 2)
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 StatusError, got %v", err)
	}
}

func TestClient_PageUnparseable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Page(context.Background(), "countries", 0, 2)
	if !errors.Is(err, fetch.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

// --- Alive Tests ---

func TestClient_Alive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alive" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"alive": true}`))
	}))
	defer server.Close()

	if err := newTestClient(server.URL).Alive(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_NotAlive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).Alive(context.Background()); err == nil {
		t.Error("expected error")
	}
}
