package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignExcludesKeyAndSortsParams(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "students", "api_key": "key"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=students&timestamp=100secret")))
	if got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("folder") != "students" || r.FormValue("signature") == "" {
			t.Errorf("missing signed params: %v", r.Form)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if hdr.Filename != "me.png" || string(data) != "png" {
				t.Errorf("unexpected file %s %q", hdr.Filename, data)
			}
		}
		_, _ = w.Write([]byte(`{"public_id":"students/x","secure_url":"https://res.test/x.png"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "students")
	c.BaseURL = srv.URL
	c.Now = func() time.Time { return time.Unix(100, 0) }
	url, err := c.Upload(context.Background(), "me.png", []byte("png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://res.test/x.png" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestUploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	if _, err := c.Upload(context.Background(), "me.png", []byte("png")); err == nil {
		t.Fatalf("expected error on 401")
	}
}
