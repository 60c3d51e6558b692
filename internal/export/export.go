// Package export submits ET-fraction images to the compute service's
// asset store. Submission is fire-and-forget: tasks are not polled.
package export

import (
	"context"
	"path"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
	"github.com/dgketchum/openet-ptjpl/internal/metrics"
	"github.com/dgketchum/openet-ptjpl/internal/resilience"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// Defaults for Config fields left zero.
const (
	DefaultCooldown     = 600 * time.Second
	DefaultMaxPixels    = 1e13
	DefaultModelName    = "openet-ptjpl"
	DefaultModelVersion = "0.4.1"
	DefaultScaleFactor  = 1.0 / 10000
)

// BandETFraction is the band whose projection sets the export grid.
const BandETFraction = "et_fraction"

// Config holds the export destination and the fixed metadata stamped on
// every image.
type Config struct {
	AssetRoot    string
	Cooldown     time.Duration
	MaxPixels    float64
	ModelName    string
	ModelVersion string
	CoreVersion  string
	ScaleFactor  float64
	// ModelArgs feeds the model for per-scene exports.
	ModelArgs collection.ModelArgs
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.ModelVersion == "" {
		c.ModelVersion = DefaultModelVersion
	}
	if c.CoreVersion == "" {
		c.CoreVersion = c.ModelVersion
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = DefaultScaleFactor
	}
	return c
}

// Failure is one image that was not submitted.
type Failure struct {
	ImageID string
	Err     error
}

// Summary reports one batch.
type Summary struct {
	Submitted []compute.Task
	// Retried counts submissions accepted only after the cooldown.
	Retried int
	Failed  []Failure
}

// Add folds o into s.
func (s *Summary) Add(o Summary) {
	s.Submitted = append(s.Submitted, o.Submitted...)
	s.Retried += o.Retried
	s.Failed = append(s.Failed, o.Failed...)
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the clock used for build dates.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// Exporter derives export requests and submits them.
type Exporter struct {
	client compute.Client
	cfg    Config
	now    func() time.Time
}

// New creates an Exporter writing under cfg.AssetRoot.
func New(client compute.Client, cfg Config, opts ...Option) (*Exporter, error) {
	if client == nil {
		return nil, eris.New("export: nil client")
	}
	if cfg.AssetRoot == "" {
		return nil, eris.New("export: asset root is required")
	}
	e := &Exporter{client: client, cfg: cfg.withDefaults(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ExportScenes exports the ET fraction of each Landsat image id under
// <asset root>/<scene id>. A failed image is recorded and skipped; only
// cancellation of ctx stops the batch.
func (e *Exporter) ExportScenes(ctx context.Context, featureID string, imageIDs []string) (Summary, error) {
	log := zap.L().With(zap.String("feature", featureID))
	var sum Summary
	for _, id := range imageIDs {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "export: scenes cancelled")
		}
		start := time.Now()
		req, err := e.sceneRequest(ctx, id)
		if err != nil {
			e.fail(log, &sum, id, err, start)
			continue
		}
		e.submit(ctx, log, &sum, id, req, start)
	}
	log.Info("export: scenes done",
		zap.Int("submitted", len(sum.Submitted)),
		zap.Int("retried", sum.Retried),
		zap.Int("failed", len(sum.Failed)),
	)
	return sum, nil
}

// ExportCollection exports every image of an interpolated collection under
// <asset root>/<feature>_<label>.
func (e *Exporter) ExportCollection(ctx context.Context, featureID string, coll graph.Collection) (Summary, error) {
	log := zap.L().With(zap.String("feature", featureID))
	info, err := e.client.CollectionInfo(ctx, coll)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "export: describe collection for %s", featureID)
	}

	var sum Summary
	for _, f := range info.Features {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "export: collection cancelled")
		}
		start := time.Now()
		label := f.Index()
		req, err := e.collectionRequest(coll, featureID, f)
		if err != nil {
			e.fail(log, &sum, label, err, start)
			continue
		}
		e.submit(ctx, log, &sum, label, req, start)
	}
	log.Info("export: collection done",
		zap.Int("images", len(info.Features)),
		zap.Int("submitted", len(sum.Submitted)),
		zap.Int("failed", len(sum.Failed)),
	)
	return sum, nil
}

func (e *Exporter) sceneRequest(ctx context.Context, imageID string) (compute.ExportRequest, error) {
	collID, scene, err := landsat.SplitImageID(imageID)
	if err != nil {
		return compute.ExportRequest{}, err
	}
	name := scene.String()

	src, err := e.client.ImageInfo(ctx, graph.LoadImage(imageID))
	if err != nil {
		return compute.ExportRequest{}, eris.Wrapf(err, "export: describe %s", imageID)
	}
	etf := graph.Model(graph.LoadImage(imageID), []string{BandETFraction}, e.cfg.ModelArgs.Node())
	proj, err := e.projection(ctx, etf.Select(BandETFraction))
	if err != nil {
		return compute.ExportRequest{}, eris.Wrapf(err, "export: projection of %s", imageID)
	}

	props := e.baseProps()
	props["coll_id"] = collID
	props["image_id"] = imageID
	props["scene_id"] = name
	props["wrs2_path"] = scene.Path
	props["wrs2_row"] = scene.Row
	props["wrs2_tile"] = scene.Tile()
	props[graph.PropIndex] = name
	for _, k := range []string{"CLOUD_COVER", "CLOUD_COVER_LAND", graph.PropTimeStart} {
		if v, ok := src.Properties[k]; ok {
			props[k] = v
		}
	}

	return e.request(etf.SetMulti(props), name, proj), nil
}

func (e *Exporter) collectionRequest(coll graph.Collection, featureID string, f compute.ImageInfo) (compute.ExportRequest, error) {
	label := f.Index()
	if label == "" {
		return compute.ExportRequest{}, eris.New("export: image without system:index")
	}
	band, ok := f.Band(BandETFraction)
	if !ok {
		if len(f.Bands) == 0 {
			return compute.ExportRequest{}, eris.Errorf("export: image %s has no bands", label)
		}
		band = f.Bands[0]
	}

	props := e.baseProps()
	props["feature_id"] = featureID
	props[graph.PropIndex] = label
	if v, ok := f.Properties[graph.PropTimeStart]; ok {
		props[graph.PropTimeStart] = v
	}

	img := coll.Filter(graph.Equals(graph.PropIndex, label)).First().SetMulti(props)
	return e.request(img, featureID+"_"+label, band), nil
}

func (e *Exporter) baseProps() map[string]any {
	return map[string]any{
		"build_date":    dateutil.Format(e.now()),
		"core_version":  e.cfg.CoreVersion,
		"model_name":    e.cfg.ModelName,
		"model_version": e.cfg.ModelVersion,
		"scale_factor":  e.cfg.ScaleFactor,
	}
}

func (e *Exporter) projection(ctx context.Context, img graph.Image) (compute.BandInfo, error) {
	info, err := e.client.ImageInfo(ctx, img)
	if err != nil {
		return compute.BandInfo{}, err
	}
	if len(info.Bands) == 0 {
		return compute.BandInfo{}, eris.New("export: image has no bands")
	}
	return info.Bands[0], nil
}

func (e *Exporter) request(img graph.Image, name string, proj compute.BandInfo) compute.ExportRequest {
	desc := AssetName(name)
	req := compute.ExportRequest{
		Image:        img,
		Description:  desc,
		AssetID:      path.Join(e.cfg.AssetRoot, desc),
		CRS:          proj.CRS,
		CRSTransform: append([]float64(nil), proj.CRSTransform...),
		MaxPixels:    e.cfg.MaxPixels,
	}
	if len(proj.Dimensions) == 2 {
		req.Dimensions = dimensions(proj.Dimensions)
	}
	return req
}

// submit starts the task, waiting out one cooldown on a transient failure.
func (e *Exporter) submit(ctx context.Context, log *zap.Logger, sum *Summary, id string, req compute.ExportRequest, start time.Time) {
	retried := false
	cfg := resilience.FixedCooldown(e.cfg.Cooldown, 2)
	cfg.OnRetry = func(_ int, err error) {
		retried = true
		log.Warn("export: submission failed, waiting before retry",
			zap.String("image", id),
			zap.Stringer("cause", resilience.Classify(err)),
			zap.Duration("cooldown", e.cfg.Cooldown),
			zap.Error(err),
		)
	}

	task, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*compute.Task, error) {
		return e.client.StartExport(ctx, req)
	})
	if err != nil {
		e.fail(log, sum, id, err, start)
		return
	}

	outcome := metrics.OutcomeSubmitted
	if retried {
		outcome = metrics.OutcomeRetried
		sum.Retried++
	}
	sum.Submitted = append(sum.Submitted, *task)
	metrics.ObserveExport(time.Since(start), outcome)
	log.Debug("export: submitted",
		zap.String("image", id),
		zap.String("asset_id", req.AssetID),
		zap.String("task", task.ID),
	)
}

func (e *Exporter) fail(log *zap.Logger, sum *Summary, id string, err error, start time.Time) {
	sum.Failed = append(sum.Failed, Failure{ImageID: id, Err: err})
	metrics.ObserveExport(time.Since(start), metrics.OutcomeFailed)
	log.Error("export: skipping image", zap.String("image", id), zap.Error(err))
}
