package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientEmptyBaseURL(t *testing.T) {
	if c := NewClient("", nil); c != nil {
		t.Fatalf("client = %v, want nil without a base url", c)
	}
	if c := NewClient("   ", nil); c != nil {
		t.Fatalf("client = %v, want nil for blank base url", c)
	}
}

func TestTriggerSuccess(t *testing.T) {
	var gotPath, gotSource string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			SourceID string `json:"source_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotSource = req.SourceID
		_ = json.NewEncoder(w).Encode(TriggerResult{ItemsCreated: 4, ItemsSkipped: 2, Errors: []string{"row 9 malformed"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	res, err := c.Trigger(context.Background(), "city-news")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if gotPath != "/collect" {
		t.Fatalf("path = %q, want /collect", gotPath)
	}
	if gotSource != "city-news" {
		t.Fatalf("source = %q", gotSource)
	}
	if res.ItemsCreated != 4 || res.ItemsSkipped != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestTriggerNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collector unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Trigger(context.Background(), "city-news")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("err = %v", err)
	}
}

func TestTriggerHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Trigger(ctx, "city-news")
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("trigger took %s against a 50ms deadline", elapsed)
	}
}
