package search

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"furniq/internal/catalog"
	"furniq/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPSearcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Skandinavisch Lampe" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("unexpected limit %q", got)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", auth)
		}

		result := model.SearchResult{
			Items: []model.FurnitureItem{
				{ID: "otto-nordic-leuchte", Name: "Nordic Leuchte", Price: 42, Currency: "EUR", Shop: "OTTO"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL, "secret", 5*time.Second, nil, testLogger())
	result, err := s.Search(context.Background(), "Skandinavisch Lampe", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != "otto-nordic-leuchte" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Query != "Skandinavisch Lampe" {
		t.Fatalf("query should be echoed back, got %q", result.Query)
	}
}

func TestHTTPSearcher_DecodesGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_ = json.NewEncoder(gz).Encode(model.SearchResult{
			Items: []model.FurnitureItem{{ID: "home24-sofa", Name: "Sofa", Price: 599}},
			Query: "Sofa",
		})
		_ = gz.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL, "", 5*time.Second, nil, testLogger())
	result, err := s.Search(context.Background(), "Sofa", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != "home24-sofa" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHTTPSearcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(model.SearchResult{Query: "Regal"})
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL, "", 5*time.Second, nil, testLogger())
	if _, err := s.Search(context.Background(), "Regal", 0); err != nil {
		t.Fatalf("search should succeed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPSearcher_EmptyQuery(t *testing.T) {
	s := NewHTTPSearcher("http://unused.invalid", "", time.Second, nil, testLogger())
	if _, err := s.Search(context.Background(), "   ", 0); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestCatalogSearcher_MatchesSubstrings(t *testing.T) {
	c := NewCatalogSearcher(catalog.Default())

	result, err := c.Search(context.Background(), "RANARP", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != "ikea-ranarp-lampe" {
		t.Fatalf("unexpected result: %+v", result.Items)
	}

	result, err = c.Search(context.Background(), "skandinavisch", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("limit must cap results, got %d", len(result.Items))
	}
}

func TestCatalogSearcher_EmptyQuery(t *testing.T) {
	c := NewCatalogSearcher(catalog.Default())
	if _, err := c.Search(context.Background(), "", 0); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}
