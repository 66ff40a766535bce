// Package curation suggests the best, most varied faces of a person for training.
package curation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/facecrop"
	"github.com/kozaktomas/facesync/internal/fingerprint"
	"github.com/kozaktomas/facesync/internal/immich"
	"github.com/kozaktomas/facesync/internal/quality"
	"github.com/kozaktomas/facesync/internal/selector"
)

var (
	// ErrNoFace is returned when the detector finds no face in a candidate thumbnail.
	ErrNoFace = errors.New("no face detected")
	// ErrMultipleFaces is returned when the detector finds more than one face.
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// Catalog is the subset of the Immich client curation reads from.
type Catalog interface {
	GetPersonFaces(ctx context.Context, personID string) ([]immich.Face, error)
	GetFaceThumbnail(ctx context.Context, face immich.Face) ([]byte, error)
	GetAssetThumbnail(ctx context.Context, assetID string) ([]byte, error)
}

// Detector returns face embeddings and landmarks for an image.
type Detector interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*fingerprint.FaceResponse, error)
	Health(ctx context.Context) error
}

// Options configure curation defaults.
type Options struct {
	K             int
	MaxCandidates int
	Threshold     float64
	Weights       selector.Weights
	CacheTTL      time.Duration // 0 disables result caching
}

// ScoredFace is one selected face with its quality breakdown.
type ScoredFace struct {
	FaceID   string  `json:"face_id"`
	Clarity  float64 `json:"clarity"`
	Frontal  float64 `json:"frontal"`
	Lighting float64 `json:"lighting"`
	Overall  float64 `json:"overall"`
}

// Suggestion is the result of curating one person.
type Suggestion struct {
	PersonID       string       `json:"person_id"`
	FaceIDs        []string     `json:"face_ids"`
	Faces          []ScoredFace `json:"faces"`
	Candidates     int          `json:"candidates"`
	Analyzed       int          `json:"analyzed"`
	Dropped        int          `json:"dropped"`
	ModelAvailable bool         `json:"model_available"`
	Cached         bool         `json:"cached"`
}

// Service runs face curation. It only reads from the catalog and detector.
type Service struct {
	catalog  Catalog
	detector Detector
	scorer   *quality.Scorer
	opts     Options
	cache    *cache.Cache
	logger   zerolog.Logger
}

// New creates a curation service. A nil detector means the face model is not
// configured and every suggestion comes back empty.
func New(catalog Catalog, detector Detector, scorer *quality.Scorer, opts Options, logger zerolog.Logger) *Service {
	if scorer == nil {
		scorer = quality.NewScorer(nil)
	}
	s := &Service{
		catalog:  catalog,
		detector: detector,
		scorer:   scorer,
		opts:     opts,
		logger:   logger,
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Suggest curates personID with the configured defaults.
func (s *Service) Suggest(ctx context.Context, personID string) (*Suggestion, error) {
	return s.Curate(ctx, personID, s.opts.MaxCandidates, s.opts.K)
}

// Curate analyzes up to maxCandidates of the person's faces and returns at most
// k diverse, high-quality face IDs. Non-positive arguments use the defaults.
// Only a failure to list the person's faces is returned as an error.
func (s *Service) Curate(ctx context.Context, personID string, maxCandidates, k int) (*Suggestion, error) {
	if maxCandidates <= 0 {
		maxCandidates = s.opts.MaxCandidates
	}
	if k <= 0 {
		k = s.opts.K
	}
	log := s.logger.With().Str("person_id", personID).Logger()

	key := fmt.Sprintf("%s|%d|%d", personID, maxCandidates, k)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			sug := v.(Suggestion).clone()
			sug.Cached = true
			return &sug, nil
		}
	}

	if !s.modelAvailable(ctx, log) {
		return &Suggestion{PersonID: personID, FaceIDs: []string{}, Faces: []ScoredFace{}}, nil
	}

	faces, err := s.catalog.GetPersonFaces(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("curate person %s: %w", personID, err)
	}
	if maxCandidates > 0 && len(faces) > maxCandidates {
		faces = faces[:maxCandidates]
	}

	log.Info().Int("candidates", len(faces)).Int("k", k).Msg("starting face analysis")

	cands := make([]selector.Candidate, 0, len(faces))
	for i, face := range faces {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("curate person %s: %w", personID, ctx.Err())
		}
		c, err := s.analyze(ctx, face)
		if err != nil {
			log.Warn().Err(err).Str("face_id", face.ID).Int("index", i+1).Msg("skipping face")
			continue
		}
		cands = append(cands, c)
	}

	selected := selector.Select(cands, k, s.opts.Threshold, s.opts.Weights)

	sug := Suggestion{
		PersonID:       personID,
		FaceIDs:        selector.FaceIDs(selected),
		Faces:          make([]ScoredFace, len(selected)),
		Candidates:     len(faces),
		Analyzed:       len(cands),
		Dropped:        len(faces) - len(cands),
		ModelAvailable: true,
	}
	for i, sel := range selected {
		sug.Faces[i] = ScoredFace{
			FaceID:   sel.FaceID,
			Clarity:  sel.Clarity,
			Frontal:  sel.Frontal,
			Lighting: sel.Lighting,
			Overall:  sel.Overall,
		}
		log.Debug().Str("face_id", sel.FaceID).Float64("score", sel.Overall).
			Float64("clarity", sel.Clarity).Float64("frontal", sel.Frontal).
			Float64("lighting", sel.Lighting).Msg("selected face")
	}

	log.Info().Int("analyzed", sug.Analyzed).Int("suggested", len(sug.FaceIDs)).Msg("face analysis complete")

	if s.cache != nil {
		s.cache.Set(key, sug.clone(), cache.DefaultExpiration)
	}
	return &sug, nil
}

// clone copies the slices so cached entries never share memory with results
// handed to callers.
func (s Suggestion) clone() Suggestion {
	s.FaceIDs = slices.Clone(s.FaceIDs)
	s.Faces = slices.Clone(s.Faces)
	return s
}

func (s *Service) modelAvailable(ctx context.Context, log zerolog.Logger) bool {
	if s.detector == nil {
		log.Error().Msg("face model not configured, cannot curate faces")
		return false
	}
	if err := s.detector.Health(ctx); err != nil {
		log.Error().Err(err).Msg("face model unavailable, cannot curate faces")
		return false
	}
	return true
}

// analyze fetches one face, embeds it and scores it.
func (s *Service) analyze(ctx context.Context, face immich.Face) (selector.Candidate, error) {
	data, err := s.fetchFace(ctx, face)
	if err != nil {
		return selector.Candidate{}, err
	}

	resp, err := s.detector.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return selector.Candidate{}, fmt.Errorf("embed face: %w", err)
	}
	switch {
	case resp.FacesCount == 0 || len(resp.Faces) == 0:
		return selector.Candidate{}, ErrNoFace
	case resp.FacesCount > 1 || len(resp.Faces) > 1:
		return selector.Candidate{}, fmt.Errorf("%w: %d", ErrMultipleFaces, resp.FacesCount)
	}

	det := resp.Faces[0]
	if len(det.Embedding) == 0 {
		return selector.Candidate{}, errors.New("empty embedding returned")
	}

	scores := s.scorer.ScoreBytes(data, landmarks(&det))
	return selector.Candidate{
		FaceID:    face.ID,
		Embedding: det.Embedding,
		Clarity:   scores.Clarity,
		Frontal:   scores.Frontal,
		Lighting:  scores.Lighting,
	}, nil
}

// fetchFace prefers the catalog's face thumbnail and falls back to cropping the asset thumbnail.
func (s *Service) fetchFace(ctx context.Context, face immich.Face) ([]byte, error) {
	if face.ThumbnailPath != "" {
		return s.catalog.GetFaceThumbnail(ctx, face)
	}
	thumb, err := s.catalog.GetAssetThumbnail(ctx, face.AssetID)
	if err != nil {
		return nil, err
	}
	return facecrop.Crop(thumb, face)
}

func landmarks(det *fingerprint.FaceDetection) *quality.Landmarks {
	left, right, nose, ok := det.Keypoints()
	if !ok {
		return nil
	}
	return &quality.Landmarks{
		LeftEye:  quality.Point{X: left.X(), Y: left.Y()},
		RightEye: quality.Point{X: right.X(), Y: right.Y()},
		Nose:     quality.Point{X: nose.X(), Y: nose.Y()},
	}
}
