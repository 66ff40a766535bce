package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/facesync/internal/httpclient"
)

const defaultEmbeddingURL = "http://localhost:8000"

// EmbeddingClient detects faces and computes their embeddings using the embedding server
type EmbeddingClient struct {
	baseURL string
	http    *httpclient.Client
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(baseURL string, hc *httpclient.Client) *EmbeddingClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    hc,
	}
}

// buildMultipartImage constructs a multipart form with the image data in a "file" part.
// The part carries an explicit Content-Type based on magic byte detection.
func buildMultipartImage(imageData []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// postMultipartImage posts the image to the given endpoint and returns the response body.
func (c *EmbeddingClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	payload, contentType, err := buildMultipartImage(imageData)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	return resp.Body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	return "application/octet-stream"
}

// ComputeFaceEmbeddings detects faces and computes their embeddings and landmarks
func (c *EmbeddingClient) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if faceResp.FacesCount == 0 {
		faceResp.FacesCount = len(faceResp.Faces)
	}

	return &faceResp, nil
}

// Health probes the embedding server. A nil error means the face model is loaded.
func (c *EmbeddingClient) Health(ctx context.Context) error {
	body, err := c.http.Get(ctx, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("embedding server unavailable: %w", err)
	}

	var h healthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		// plain-text health endpoints are fine as long as they answered 2xx
		return nil
	}
	if h.Status != "" && !strings.EqualFold(h.Status, "ok") && !strings.EqualFold(h.Status, "healthy") {
		return fmt.Errorf("embedding server reports status %q", h.Status)
	}
	return nil
}
