// Package immich is a client for the subset of the Immich API facesync consumes.
package immich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kozaktomas/facesync/internal/httpclient"
)

// Immich represents a client for the Immich API
type Immich struct {
	URL       string
	parsedURL *url.URL
	apiKey    string
	http      *httpclient.Client
}

// New creates a new Immich client for the server at rawURL (without the /api suffix).
func New(rawURL, apiKey string, hc *httpclient.Client) (*Immich, error) {
	base := strings.TrimSuffix(rawURL, "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid Immich URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Immich URL %q: scheme and host are required", rawURL)
	}
	return &Immich{URL: base, parsedURL: parsed, apiKey: apiKey, http: hc}, nil
}

// resolveURL builds a full URL from the server URL and the given path segments.
func (im *Immich) resolveURL(pathSegments ...string) string {
	return im.parsedURL.JoinPath(pathSegments...).String()
}

// resolvePath resolves a server-supplied path (absolute or relative) against the server URL.
func (im *Immich) resolvePath(p string) (string, error) {
	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", p, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return im.parsedURL.ResolveReference(ref).String(), nil
}

func (im *Immich) header(accept string) http.Header {
	h := http.Header{}
	h.Set("x-api-key", im.apiKey)
	h.Set("Accept", accept)
	return h
}

func doGetJSON[T any](ctx context.Context, im *Immich, pathSegments ...string) (*T, error) {
	return httpclient.GetJSON[T](ctx, im.http, im.resolveURL(pathSegments...), im.header("application/json"))
}
