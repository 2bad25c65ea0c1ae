package captioner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/reelbot/internal/config"
)

func completionJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func writeFrame(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	return path
}

func newTestClient(url string) *Client {
	return NewClient(config.CaptionConfig{
		APIKey:   "test-key",
		BaseURL:  url + "/",
		Model:    "gpt-4o-mini",
		Timeout:  2 * time.Second,
		MaxWords: 8,
		Language: "English",
	})
}

func TestCaption(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON(`"A golden retriever surfing a small wave at sunset, looking proud"`)))
	}))
	defer server.Close()

	caption, err := newTestClient(server.URL).Caption(context.Background(), writeFrame(t))
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if caption != "A golden retriever surfing a small wave at" {
		t.Errorf("caption = %q, want first 8 words without quotes", caption)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", body["model"])
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), "data:image/jpeg;base64,") {
		t.Error("request should carry the frame as a base64 data URL")
	}
	if !strings.Contains(string(raw), "at most 8 words") {
		t.Error("prompt should state the word limit")
	}
}

func TestCaption_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Caption(context.Background(), writeFrame(t)); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestCaption_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("  \"\"  ")))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Caption(context.Background(), writeFrame(t))
	if !errors.Is(err, ErrEmptyCaption) {
		t.Errorf("error = %v, want ErrEmptyCaption", err)
	}
}

func TestCaption_MissingFrame(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	if _, err := c.Caption(context.Background(), filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing frame")
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"  Cat plays piano  ", 8, "Cat plays piano"},
		{`"Cat plays piano"`, 8, "Cat plays piano"},
		{"one two three four five", 3, "one two three"},
		{"First line\nsecond line", 8, "First line"},
		{"", 8, ""},
	}

	for _, tt := range tests {
		if got := Clean(tt.in, tt.max); got != tt.want {
			t.Errorf("Clean(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
