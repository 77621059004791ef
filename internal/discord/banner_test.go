package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/banner.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	data, ct, err := fetchImage(context.Background(), srv.Client(), srv.URL+"/banner.png")
	if err != nil {
		t.Fatalf("fetchImage: %v", err)
	}
	if string(data) != "png-bytes" || ct != "image/png" {
		t.Fatalf("got %q %q", data, ct)
	}

	if _, _, err := fetchImage(context.Background(), srv.Client(), srv.URL+"/page.html"); err == nil {
		t.Fatal("non-image content type accepted")
	}
	if _, _, err := fetchImage(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatal("404 accepted")
	}
}

func TestEncodeImageDataURI(t *testing.T) {
	t.Parallel()

	uri := encodeImageDataURI("image/png", []byte{0x89, 0x50})
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("uri = %q", uri)
	}
}
