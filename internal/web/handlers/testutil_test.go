package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// fakeRunner is a SyncRunner whose Trigger result is scripted.
type fakeRunner struct {
	tracker *status.Tracker
	events  *syncer.Broadcaster
	runID   string
	err     error
	got     *syncer.Selection
	calls   int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		tracker: status.NewTracker(status.DefaultLogCapacity, nil, zerolog.Nop()),
		events:  &syncer.Broadcaster{},
		runID:   "run-1",
	}
}

func (f *fakeRunner) Trigger(_ context.Context, sel *syncer.Selection) (string, error) {
	f.calls++
	f.got = sel
	if f.err != nil {
		return "", f.err
	}
	return f.runID, nil
}

func (f *fakeRunner) Tracker() *status.Tracker    { return f.tracker }
func (f *fakeRunner) Events() *syncer.Broadcaster { return f.events }
