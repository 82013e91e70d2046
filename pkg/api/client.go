// Package api is the REST client for the HotMike backend's AI
// collaborator endpoints: overlay image generation and name-card
// rendering.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type GenerateImageRequest struct {
	Prompt      string `json:"prompt"`
	Context     string `json:"context,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// GenerateImageResponse carries the stored image URL plus the
// service's positioning suggestion for the overlay.
type GenerateImageResponse struct {
	ImageURL string  `json:"image_url"`
	Filename string  `json:"filename"`
	Position string  `json:"position"`
	Scale    float64 `json:"scale"`
	Error    string  `json:"error,omitempty"`
}

type GenerateNameCardRequest struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

type GenerateNameCardResponse struct {
	ImageURL string `json:"image_url"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GenerateImage asks the backend to create an overlay image for the
// given prompt, returning its URL and suggested placement.
func (c *Client) GenerateImage(ctx context.Context, req *GenerateImageRequest) (*GenerateImageResponse, error) {
	var resp GenerateImageResponse
	if err := c.post(ctx, "/api/ai/generate-image", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("image generation failed: %s", resp.Error)
	}
	return &resp, nil
}

// GenerateNameCard asks the backend to render a lower-third name card
// image.
func (c *Client) GenerateNameCard(ctx context.Context, req *GenerateNameCardRequest) (*GenerateNameCardResponse, error) {
	var resp GenerateNameCardResponse
	if err := c.post(ctx, "/api/ai/generate-name-card", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("name card generation failed: %s", resp.Error)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
