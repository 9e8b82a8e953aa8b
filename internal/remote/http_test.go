// Package remote provides unit tests for the HTTP publish client.
package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStoreAllocateReference(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/references" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reference":"r-123"}`))
	}))
	defer srv.Close()

	s := NewHTTPStore(HTTPConfig{APIURL: srv.URL, APIKey: "secret"})

	ref, err := s.AllocateReference(context.Background())
	if err != nil {
		t.Fatalf("AllocateReference failed: %v", err)
	}
	if ref != "r-123" {
		t.Errorf("ref = %q, want r-123", ref)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestHTTPStoreAllocateRejectsEmptyReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewHTTPStore(HTTPConfig{APIURL: srv.URL})
	if _, err := s.AllocateReference(context.Background()); err == nil {
		t.Error("empty reference must be an error")
	}
}

func TestHTTPStorePublish(t *testing.T) {
	var gotPath string
	var gotSnap Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotSnap); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPStore(HTTPConfig{APIURL: srv.URL + "/"})

	snap := Snapshot{LocalID: 7, Title: "T", Body: "B", PublishedAt: 99}
	if err := s.Publish(context.Background(), "r-7", snap); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if gotPath != "/posts/r-7" {
		t.Errorf("path = %q, want /posts/r-7", gotPath)
	}
	if gotSnap.LocalID != 7 || gotSnap.Title != "T" || gotSnap.Body != "B" || gotSnap.PublishedAt != 99 {
		t.Errorf("server received %+v", gotSnap)
	}
}

func TestHTTPStoreSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewHTTPStore(HTTPConfig{APIURL: srv.URL})

	if _, err := s.AllocateReference(context.Background()); err == nil {
		t.Error("AllocateReference swallowed a 403")
	}
	if err := s.Publish(context.Background(), "r", Snapshot{Body: "B"}); err == nil {
		t.Error("Publish swallowed a 403")
	}
}

func TestHTTPStoreHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewHTTPStore(HTTPConfig{APIURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Publish(ctx, "r", Snapshot{Body: "B"}); err == nil {
		t.Error("Publish ignored a cancelled context")
	}
}
