package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
)

func TestHTTPRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/org/repo/resolve/main/model.onnx":
			io.WriteString(w, "onnx-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := NewHTTP(srv.URL+"/org/repo/resolve/main", WithBearerToken("hf_test"))
	ctx := context.Background()

	r, err := store.Read(ctx, "model.onnx")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(r)
	r.Close()
	if string(got) != "onnx-bytes" {
		t.Errorf("got %q", got)
	}

	_, err = store.Read(ctx, "missing.onnx")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}

	ok, err := store.Exists(ctx, "model.onnx")
	if err != nil || !ok {
		t.Errorf("Exists(model.onnx) = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "missing.onnx")
	if err != nil || ok {
		t.Errorf("Exists(missing.onnx) = %v, %v", ok, err)
	}
}

func TestHTTPUnauthorizedNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL).Read(context.Background(), "x")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestHTTPRetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	r, err := NewHTTP(srv.URL, WithMaxRetries(1)).Read(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestHTTPReadOnly(t *testing.T) {
	store := NewHTTP("http://example.invalid")
	if _, err := store.Write(context.Background(), "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write err = %v", err)
	}
	if err := store.Delete(context.Background(), "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestHTTPURL(t *testing.T) {
	store := NewHTTP("https://huggingface.co/a/b/resolve/main/")
	if got := store.URL("/avg_model.onnx"); got != "https://huggingface.co/a/b/resolve/main/avg_model.onnx" {
		t.Errorf("URL = %q", got)
	}
	if got := store.URL(""); got != "https://huggingface.co/a/b/resolve/main" {
		t.Errorf("URL(\"\") = %q", got)
	}
}
