package face

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/recognition"
)

// FaceLookup is the read side of the identity store used to augment matches.
type FaceLookup interface {
	FacesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]models.Face, error)
	ThumbnailByExternalID(ctx context.Context, externalID string) (string, error)
}

type ReconcilerConfig struct {
	TopK             int
	BackendThreshold float64
	MinScore         float64
	MaxMatches       int
	MinImageLength   int
}

// Match is a backend candidate that survived filtering, optionally joined to
// a local face record.
type Match struct {
	ExternalID string
	Score      float64
	Thumbnail  string
	FaceID     *int64
}

type CheckResult struct {
	Type      string
	BestScore float64
	Threshold float64
	Matches   []Match
	// Recovered is set when the single-best-candidate path produced the matches.
	Recovered bool
}

// Reconciler turns raw backend check results into the ranked match list
// returned to callers.
type Reconciler struct {
	backend recognition.Client
	faces   FaceLookup
	events  EventPublisher
	cfg     ReconcilerConfig
	logger  *slog.Logger
}

func NewReconciler(backend recognition.Client, faces FaceLookup, events EventPublisher, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = cfg.MaxMatches
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{backend: backend, faces: faces, events: events, cfg: cfg, logger: logger}
}

// Check asks the backend about image and reconciles its answer with the
// identity store.
func (r *Reconciler) Check(ctx context.Context, image string) (*CheckResult, error) {
	if err := ValidateImage(image, r.cfg.MinImageLength); err != nil {
		return nil, err
	}

	raw, err := r.backend.Check(ctx, recognition.CheckRequest{
		Base64Image:       image,
		TopK:              r.cfg.TopK,
		Threshold:         r.cfg.BackendThreshold,
		IncludeThumbnails: true,
	})
	if err != nil {
		return nil, fmt.Errorf("check face: %w", err)
	}

	result := &CheckResult{
		Type:      raw.Type,
		BestScore: raw.BestScore,
		Threshold: raw.Threshold,
		Matches:   r.filter(raw.Matches),
	}

	if result.Type == recognition.TypeExisting && len(result.Matches) == 0 {
		best, err := r.recover(ctx, image, raw.Threshold)
		if err != nil {
			return nil, err
		}
		if best != nil {
			result.Matches = []Match{*best}
			result.Recovered = true
			observability.MismatchRecoveries.WithLabelValues("recovered").Inc()
		} else {
			observability.MismatchRecoveries.WithLabelValues("empty").Inc()
		}
	}

	r.augment(ctx, result.Matches)

	if result.Type == recognition.TypeExisting {
		r.ensureThumbnail(ctx, result.Matches)
	}

	observability.ChecksTotal.WithLabelValues(result.Type).Inc()
	r.publishChecked(ctx, result)

	return result, nil
}

// filter drops candidates under the confidence floor, orders the rest by
// descending score and caps the list.
func (r *Reconciler) filter(candidates []recognition.Candidate) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < r.cfg.MinScore {
			continue
		}
		matches = append(matches, Match{ExternalID: c.ExternalID, Score: c.Score, Thumbnail: c.Thumbnail})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > r.cfg.MaxMatches {
		matches = matches[:r.cfg.MaxMatches]
	}
	return matches
}

// recover re-queries the backend for its single best candidate when it
// classified the image as existing but nothing cleared the floor.
func (r *Reconciler) recover(ctx context.Context, image string, threshold float64) (*Match, error) {
	if threshold <= 0 {
		threshold = r.cfg.BackendThreshold
	}

	r.logger.Info("backend reported existing identity without matches above floor, querying best candidate",
		"threshold", threshold, "min_score", r.cfg.MinScore)

	raw, err := r.backend.Check(ctx, recognition.CheckRequest{
		Base64Image:       image,
		TopK:              1,
		Threshold:         threshold,
		IncludeThumbnails: true,
	})
	if err != nil {
		return nil, fmt.Errorf("recover best candidate: %w", err)
	}

	var best *recognition.Candidate
	for i := range raw.Matches {
		if best == nil || raw.Matches[i].Score > best.Score {
			best = &raw.Matches[i]
		}
	}
	if best == nil {
		r.logger.Warn("backend offered no best candidate for existing classification")
		return nil, nil
	}

	return &Match{ExternalID: best.ExternalID, Score: best.Score, Thumbnail: best.Thumbnail}, nil
}

type lookupStatus int

const (
	lookupMissing lookupStatus = iota
	lookupFound
	lookupFailed
)

type lookupResult struct {
	status lookupStatus
	face   models.Face
}

// lookup resolves external ids against the store. Errors are logged and
// reported as lookupFailed rather than returned.
func (r *Reconciler) lookup(ctx context.Context, externalIDs []string) map[string]lookupResult {
	results := make(map[string]lookupResult, len(externalIDs))

	faces, err := r.faces.FacesByExternalIDs(ctx, externalIDs)
	if err != nil {
		observability.AugmentationFailures.Inc()
		r.logger.Warn("augment matches: lookup faces", "count", len(externalIDs), "error", err)
		for _, id := range externalIDs {
			results[id] = lookupResult{status: lookupFailed}
		}
		return results
	}

	for _, id := range externalIDs {
		if f, ok := faces[id]; ok {
			results[id] = lookupResult{status: lookupFound, face: f}
		} else {
			results[id] = lookupResult{status: lookupMissing}
		}
	}
	return results
}

func (r *Reconciler) augment(ctx context.Context, matches []Match) {
	if len(matches) == 0 {
		return
	}

	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.ExternalID]; ok {
			continue
		}
		seen[m.ExternalID] = struct{}{}
		ids = append(ids, m.ExternalID)
	}

	found := r.lookup(ctx, ids)
	for i := range matches {
		res := found[matches[i].ExternalID]
		if res.status != lookupFound {
			continue
		}
		faceID := res.face.FaceID
		matches[i].FaceID = &faceID
		if matches[i].Thumbnail == "" {
			matches[i].Thumbnail = res.face.Thumbnail
		}
	}
}

// ensureThumbnail attaches the stored thumbnail of the top match when no
// match carries one.
func (r *Reconciler) ensureThumbnail(ctx context.Context, matches []Match) {
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		if m.Thumbnail != "" {
			return
		}
	}

	top := &matches[0]
	thumb, err := r.faces.ThumbnailByExternalID(ctx, top.ExternalID)
	if err != nil {
		observability.AugmentationFailures.Inc()
		r.logger.Warn("fetch stored thumbnail", "external_id", top.ExternalID, "error", err)
		return
	}
	top.Thumbnail = thumb
}

func (r *Reconciler) publishChecked(ctx context.Context, result *CheckResult) {
	event := models.NewFaceEvent(models.FaceEventChecked)
	event.Classification = result.Type
	event.Score = result.BestScore
	if len(result.Matches) > 0 {
		event.ExternalID = result.Matches[0].ExternalID
		event.FaceID = result.Matches[0].FaceID
	}
	publish(ctx, r.events, r.logger, event)
}
