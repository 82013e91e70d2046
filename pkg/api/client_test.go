package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateImageSendsAuthAndDecodesPlacement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/generate-image" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth header = %q", got)
		}
		var req GenerateImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "a revenue chart" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(GenerateImageResponse{
			ImageURL: "/api/generated-images/abc.png",
			Position: "bottom-right",
			Scale:    0.4,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	resp, err := c.GenerateImage(context.Background(), &GenerateImageRequest{Prompt: "a revenue chart"})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if resp.ImageURL == "" || resp.Position != "bottom-right" || resp.Scale != 0.4 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestServiceErrorFieldBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerateNameCardResponse{Error: "AI service not available"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.GenerateNameCard(context.Background(), &GenerateNameCardRequest{Name: "Ada"}); err == nil {
		t.Fatal("expected error from service error field")
	}
}

func TestNon200StatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.GenerateImage(context.Background(), &GenerateImageRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error on 429")
	}
}
