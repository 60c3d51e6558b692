// Package localengine evaluates computation graphs in memory on a tiny shared
// pixel grid. It implements compute.Client so builders and exporters can be
// exercised end to end without the remote service.
package localengine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// ModelFunc computes the requested variables from a source image. The
// returned image must carry one band per variable.
type ModelFunc func(src *Image, variables []string, args map[string]any) (*Image, error)

// Option configures an Engine.
type Option func(*Engine)

// WithGrid replaces the default pixel grid.
func WithGrid(g Grid) Option {
	return func(e *Engine) {
		e.grid = g
	}
}

// WithModel replaces the default model, which selects bands named after the
// requested variables from the source image.
func WithModel(fn ModelFunc) Option {
	return func(e *Engine) {
		e.model = fn
	}
}

// Export is one recorded export submission.
type Export struct {
	Request compute.ExportRequest
	Image   *Image
	Task    compute.Task
}

// Engine holds stored collections and evaluates graphs against them.
type Engine struct {
	grid        Grid
	model       ModelFunc
	collections map[string][]*Image
	order       []string

	mu      sync.Mutex
	exports []Export
}

var _ compute.Client = (*Engine)(nil)

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		grid:        DefaultGrid(),
		model:       SelectModel,
		collections: make(map[string][]*Image),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grid returns the engine's pixel grid.
func (e *Engine) Grid() Grid { return e.grid }

// AddImage stores img in a collection. system:index is required; system:id
// defaults to "<collection>/<index>".
func (e *Engine) AddImage(collectionID string, img *Image) error {
	idx, ok := img.Props[graph.PropIndex].(string)
	if !ok || idx == "" {
		return eris.Errorf("localengine: image in %s has no %s", collectionID, graph.PropIndex)
	}
	if err := e.checkImage(img); err != nil {
		return err
	}
	if _, ok := img.Props[graph.PropID]; !ok {
		img.Props[graph.PropID] = collectionID + "/" + idx
	}
	if _, ok := e.collections[collectionID]; !ok {
		e.order = append(e.order, collectionID)
	}
	e.collections[collectionID] = append(e.collections[collectionID], img)
	return nil
}

// MustAddImage is AddImage for test fixtures. It panics on error.
func (e *Engine) MustAddImage(collectionID string, img *Image) {
	if err := e.AddImage(collectionID, img); err != nil {
		panic(err)
	}
}

// EvaluateImage computes an image graph.
func (e *Engine) EvaluateImage(img graph.Image) (*Image, error) {
	v, err := e.Evaluate(img.Node())
	if err != nil {
		return nil, err
	}
	return asImage(v)
}

// EvaluateCollection computes a collection graph.
func (e *Engine) EvaluateCollection(c graph.Collection) ([]*Image, error) {
	v, err := e.Evaluate(c.Node())
	if err != nil {
		return nil, err
	}
	return asCollection(v)
}

// Evaluate computes an arbitrary graph node.
func (e *Engine) Evaluate(n *graph.Node) (any, error) {
	if n == nil {
		return nil, eris.New("localengine: evaluate nil node")
	}
	return newEvaluator(e).eval(n, nil)
}

// wire round-trips n through the serialized form, as a remote call would.
func wire(n *graph.Node) (*graph.Node, error) {
	expr, err := graph.Encode(n)
	if err != nil {
		return nil, err
	}
	return graph.Decode(expr)
}

// CollectionInfo materializes collection metadata.
func (e *Engine) CollectionInfo(ctx context.Context, c graph.Collection) (*compute.CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "localengine: collection info")
	}
	if c.IsZero() {
		return nil, eris.New("localengine: empty collection graph")
	}
	n, err := wire(c.Node())
	if err != nil {
		return nil, eris.Wrap(err, "localengine: collection info")
	}
	images, err := e.EvaluateCollection(graph.CollectionOf(n))
	if err != nil {
		return nil, eris.Wrap(err, "localengine: collection info")
	}
	info := &compute.CollectionInfo{Type: "ImageCollection", Features: make([]compute.ImageInfo, len(images))}
	for i, img := range images {
		info.Features[i] = img.info(e.grid)
	}
	return info, nil
}

// ImageInfo materializes image metadata.
func (e *Engine) ImageInfo(ctx context.Context, img graph.Image) (*compute.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "localengine: image info")
	}
	if img.IsZero() {
		return nil, eris.New("localengine: empty image graph")
	}
	n, err := wire(img.Node())
	if err != nil {
		return nil, eris.Wrap(err, "localengine: image info")
	}
	out, err := e.EvaluateImage(graph.ImageOf(n))
	if err != nil {
		return nil, eris.Wrap(err, "localengine: image info")
	}
	info := out.info(e.grid)
	return &info, nil
}

// StartExport evaluates the image and records the submission.
func (e *Engine) StartExport(ctx context.Context, req compute.ExportRequest) (*compute.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "localengine: start export")
	}
	if req.Image.IsZero() {
		return nil, eris.New("localengine: export without image")
	}
	n, err := wire(req.Image.Node())
	if err != nil {
		return nil, eris.Wrapf(err, "localengine: start export %s", req.Description)
	}
	out, err := e.EvaluateImage(graph.ImageOf(n))
	if err != nil {
		return nil, eris.Wrapf(err, "localengine: start export %s", req.Description)
	}

	task := compute.Task{ID: "operations/" + uuid.NewString(), Description: req.Description, State: "READY"}
	e.mu.Lock()
	e.exports = append(e.exports, Export{Request: req, Image: out, Task: task})
	e.mu.Unlock()

	zap.L().Debug("localengine: export recorded",
		zap.String("description", req.Description),
		zap.String("asset_id", req.AssetID),
	)
	return &task, nil
}

// Exports returns the recorded export submissions in order.
func (e *Engine) Exports() []Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Export(nil), e.exports...)
}

// SelectModel is the default ModelFunc: every variable must already exist as
// a band of the source image.
func SelectModel(src *Image, variables []string, _ map[string]any) (*Image, error) {
	out := src.shallow()
	out.Bands = make([]*Band, 0, len(variables))
	for _, v := range variables {
		b, ok := src.Band(v)
		if !ok {
			return nil, eris.Errorf("localengine: model variable %q not in source bands %v", v, src.BandNames())
		}
		out.Bands = append(out.Bands, b)
	}
	return out, nil
}
