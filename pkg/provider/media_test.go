package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInlineMediaDataURLPassthrough(t *testing.T) {
	src := "data:image/png;base64,iVBORw0KGgo="
	out, err := InlineMedia(context.Background(), src, 1024, time.Second)
	if err != nil {
		t.Fatalf("InlineMedia: %v", err)
	}
	if out != src {
		t.Fatalf("data url must pass through unchanged, got %q", out)
	}
}

func TestInlineMediaDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	out, err := InlineMedia(context.Background(), srv.URL, 1024, time.Second)
	if err != nil {
		t.Fatalf("InlineMedia: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/png;base64,") {
		t.Fatalf("out = %q", out)
	}
}

func TestInlineMediaEnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	if _, err := InlineMedia(context.Background(), srv.URL, 1024, time.Second); err == nil {
		t.Fatalf("expected oversized media to be rejected")
	}
}

func TestInlineMediaRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := InlineMedia(context.Background(), srv.URL, 1024, time.Second); err == nil {
		t.Fatalf("expected non-200 download to fail")
	}
}
