package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kozaktomas/facesync/internal/httpclient"
)

// Reloader asks the downstream consumer to pick up newly written faces.
type Reloader struct {
	url  string
	http *httpclient.Client
}

// NewReloader creates a webhook notifier. It returns nil when url is empty.
func NewReloader(url string, hc *httpclient.Client) *Reloader {
	if url == "" {
		return nil
	}
	return &Reloader{url: url, http: hc}
}

type reloadPayload struct {
	RunID   string `json:"run_id"`
	Trained int    `json:"trained"`
}

// Notify posts {run_id, trained} to the webhook.
func (r *Reloader) Notify(ctx context.Context, runID string, trained int) error {
	body, err := json.Marshal(reloadPayload{RunID: runID, Trained: trained})
	if err != nil {
		return fmt.Errorf("could not marshal reload payload: %w", err)
	}

	_, err = r.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("reload webhook: %w", err)
	}
	return nil
}
