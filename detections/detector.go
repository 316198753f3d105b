package detections

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/golfvision/golfball-detection-service/logger"
	"github.com/golfvision/golfball-detection-service/models"
)

// Pipeline stages reported in ProcessingError.
const (
	StageRead        = "read upload"
	StageDecode      = "decode image"
	StageAcquire     = "acquire session"
	StagePreprocess  = "preprocess"
	StageInference   = "model inference"
	StagePostprocess = "process predictions"
	StageRender      = "render image"
	StageEncode      = "encode image"
)

type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

type Options struct {
	PoolSize       int
	AcquireTimeout time.Duration
	ConfThreshold  float64
	IouThreshold   float64
	MaxDetections  int
	Logger         *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.ConfThreshold <= 0 {
		o.ConfThreshold = DefaultConfThreshold
	}
	if o.IouThreshold <= 0 {
		o.IouThreshold = DefaultIouThreshold
	}
	if o.MaxDetections <= 0 {
		o.MaxDetections = DefaultMaxDetections
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Detector is the loaded model. It is safe for concurrent use and is not
// modified after Load returns.
type Detector struct {
	pool   *SessionPool
	info   modelInfo
	layout OutputLayout
	names  map[int]string
	opts   Options
}

func newDetector(pool *SessionPool, info modelInfo, layout OutputLayout, names map[int]string, opts Options) *Detector {
	if names == nil {
		names = map[int]string{}
	}
	return &Detector{
		pool:   pool,
		info:   info,
		layout: layout,
		names:  names,
		opts:   opts.withDefaults(),
	}
}

// Result is the detection output for one image.
type Result struct {
	Detections []models.Detection
	Source     image.Image
	names      map[int]string

	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// Predict runs every image through the model and returns one Result per
// image, in input order.
func (d *Detector) Predict(ctx context.Context, images ...image.Image) ([]*Result, error) {
	results := make([]*Result, 0, len(images))
	for i, img := range images {
		res, err := d.predictOne(ctx, img)
		if err != nil {
			if len(images) > 1 {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (d *Detector) predictOne(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &ProcessingError{Message: StagePreprocess, Cause: fmt.Errorf("empty image")}
	}

	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, &ProcessingError{Message: StageAcquire, Cause: err}
	}
	defer d.pool.Release(session)

	res := &Result{Source: img, names: d.names}

	start := time.Now()
	input, lb := letterboxImage(img, d.info.inputWidth(), d.info.inputHeight())
	dst := session.InputData()
	if len(dst) < 3*d.info.inputWidth()*d.info.inputHeight() {
		return nil, &ProcessingError{Message: StagePreprocess, Cause: fmt.Errorf("input buffer too small: %d", len(dst))}
	}
	fillCHW(input, dst)
	res.Preprocess = time.Since(start)

	start = time.Now()
	if err := session.Run(); err != nil {
		return nil, &ProcessingError{Message: StageInference, Cause: err}
	}
	res.Inference = time.Since(start)

	start = time.Now()
	dets, err := d.postprocess(session.OutputData(), lb)
	if err != nil {
		return nil, &ProcessingError{Message: StagePostprocess, Cause: err}
	}
	res.Detections = dets
	res.Postprocess = time.Since(start)

	return res, nil
}

// postprocess decodes raw output into source-space detections. It must run
// while the session that produced out is still held.
func (d *Detector) postprocess(out []float32, lb letterbox) ([]models.Detection, error) {
	cands, err := decodeOutput(d.layout, out, d.info.OutputShape, float32(d.opts.ConfThreshold))
	if err != nil {
		return nil, err
	}
	kept := nonMaxSuppression(cands, float32(d.opts.IouThreshold), d.opts.MaxDetections)

	dets := make([]models.Detection, 0, len(kept))
	for _, c := range kept {
		dets = append(dets, models.Detection{
			BBox:       lb.toSource(c.box),
			Confidence: clamp(float64(c.score), 0, 1),
			ClassID:    c.class,
		})
	}
	return dets, nil
}

func (d *Detector) ClassName(id int) string {
	return className(d.names, id)
}

func (d *Detector) Layout() OutputLayout {
	return d.layout
}

// InputSize is the model input width and height.
func (d *Detector) InputSize() (int, int) {
	return d.info.inputWidth(), d.info.inputHeight()
}

func (d *Detector) NumClasses() int {
	return d.layout.numClasses(d.info.OutputShape)
}

func (d *Detector) Stats() PoolStats {
	return d.pool.Stats()
}

func (d *Detector) Destroy() {
	d.pool.Destroy()
}
