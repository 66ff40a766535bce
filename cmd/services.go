package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/curation"
	"github.com/kozaktomas/facesync/internal/fingerprint"
	"github.com/kozaktomas/facesync/internal/httpclient"
	"github.com/kozaktomas/facesync/internal/immich"
	"github.com/kozaktomas/facesync/internal/logging"
	"github.com/kozaktomas/facesync/internal/quality"
	"github.com/kozaktomas/facesync/internal/selector"
	"github.com/kozaktomas/facesync/internal/state"
	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
	"github.com/kozaktomas/facesync/internal/trainer"
)

// newHTTPClient builds the shared retry/timeout client. The per-attempt
// timeout lives in the policy, so the underlying client has none.
func newHTTPClient(cfg *config.Config, component string) *httpclient.Client {
	return httpclient.New(&http.Client{}, httpclient.Policy{
		Timeout:      cfg.HTTP.Timeout,
		MaxRetries:   cfg.HTTP.MaxRetries,
		RetryBackoff: cfg.HTTP.RetryBackoff,
	}, logging.Component(component))
}

func newCatalog(cfg *config.Config) (*immich.Immich, error) {
	im, err := immich.New(cfg.Immich.URL, cfg.Immich.APIKey, newHTTPClient(cfg, "immich"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Immich client: %w", err)
	}
	return im, nil
}

// newDetector returns nil when no embedding backend is configured so that
// curation reports the model as unavailable.
func newDetector(cfg *config.Config) curation.Detector {
	if cfg.Embedding.URL == "" {
		return nil
	}
	return fingerprint.NewEmbeddingClient(cfg.Embedding.URL, newHTTPClient(cfg, "embedding"))
}

func newCurationService(cfg *config.Config, catalog curation.Catalog, detector curation.Detector) *curation.Service {
	return curation.New(catalog, detector, quality.NewScorer(quality.TwoLevelPose{}), curation.Options{
		K:             cfg.Curation.K,
		MaxCandidates: cfg.Curation.MaxCandidates,
		Threshold:     cfg.Curation.DistanceThreshold,
		Weights: selector.Weights{
			Clarity:  cfg.Curation.Weights.Clarity,
			Frontal:  cfg.Curation.Weights.Frontal,
			Lighting: cfg.Curation.Weights.Lighting,
		},
		CacheTTL: cfg.Curation.CacheTTL,
	}, logging.Component("curation"))
}

// newTrainer prefers Double Take and falls back to the file drop directory.
func newTrainer(cfg *config.Config) trainer.Trainer {
	if cfg.DoubleTake.URL != "" {
		return trainer.NewDoubleTake(cfg.DoubleTake.URL, cfg.DoubleTake.APIKey, newHTTPClient(cfg, "doubletake"))
	}
	return trainer.NewFileDrop(cfg.Trainer.Dir)
}

// syncServices groups everything a sync run needs.
type syncServices struct {
	catalog *immich.Immich
	store   *state.Store
	tracker *status.Tracker
	trainer trainer.Trainer
	syncer  *syncer.Syncer
}

func newSyncServices(cfg *config.Config, sinks ...syncer.Sink) (*syncServices, error) {
	catalog, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}

	store := state.Open(cfg.Sync.StateFile, logging.Component("state"))
	summaries := status.NewFileSummaryStore(filepath.Join(cfg.Sync.DataDir, status.SummaryFileName))
	tracker := status.NewTracker(status.DefaultLogCapacity, summaries, logging.Component("status"))
	tr := newTrainer(cfg)

	deps := syncer.Deps{
		Catalog: catalog,
		Trainer: tr,
		Store:   store,
		Tracker: tracker,
		Sinks:   sinks,
		Logger:  logging.Component("syncer"),
	}
	if reloader := trainer.NewReloader(cfg.Trainer.ReloadURL, newHTTPClient(cfg, "reload")); reloader != nil {
		deps.Notifier = reloader
	}

	return &syncServices{
		catalog: catalog,
		store:   store,
		tracker: tracker,
		trainer: tr,
		syncer: syncer.New(deps, syncer.Options{
			SkipExisting: cfg.Sync.SkipExisting,
			PerPersonCap: cfg.Sync.PerPersonCap,
		}),
	}, nil
}
