package censor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestService_check(t *testing.T) {
	c := New()
	if err := c.LoadFromJSON(filepath.Join("test_data", "words.json")); err != nil {
		t.Fatalf("failed to load words: %v", err)
	}
	srv := httptest.NewServer(NewService(c).Router())
	t.Cleanup(srv.Close)

	remote := NewRemote(srv.URL)
	tests := []struct {
		text string
		want bool
	}{
		{text: "A scampi recipe", want: false},
		{text: "Free $pam inside", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := remote.Banned(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestService_badRequest(t *testing.T) {
	s := NewService(New())

	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status code %v, got %v", http.StatusBadRequest, rr.Code)
	}
}
