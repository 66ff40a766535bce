package trainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/facesync/internal/httpclient"
)

// DoubleTake uploads face crops to a Double Take server's training endpoint.
type DoubleTake struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// NewDoubleTake creates a Double Take trainer. apiKey is optional.
func NewDoubleTake(baseURL, apiKey string, hc *httpclient.Client) *DoubleTake {
	return &DoubleTake{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}
}

func (d *DoubleTake) Name() string { return "doubletake" }

// Train posts the crop as multipart "file" named <faceID>.jpg with the person in "name".
func (d *DoubleTake) Train(ctx context.Context, person, faceID string, jpeg []byte) error {
	if person == "" {
		return errors.New("person name is empty")
	}

	payload, contentType, err := trainForm(person, faceID, jpeg)
	if err != nil {
		return err
	}

	_, err = d.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/recognize/train", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if d.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+d.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("train %s with face %s: %w", person, faceID, err)
	}
	return nil
}

func trainForm(person, faceID string, jpeg []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, faceID+".jpg"))
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("name", person); err != nil {
		return nil, "", fmt.Errorf("failed to write name field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
