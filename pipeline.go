package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/imaging"
	"github.com/golfvision/golfball-detection-service/detections"
	"github.com/golfvision/golfball-detection-service/logger"
	"github.com/golfvision/golfball-detection-service/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Detector is the part of the loaded model the pipeline needs.
type Detector interface {
	Predict(ctx context.Context, images ...image.Image) ([]*detections.Result, error)
}

// Outcome is the result of one pipeline run: either a successful response
// or the error that stopped it. Never both.
type Outcome struct {
	Response models.DetectionResponse
	Err      error
	Timings  *models.ProcessingTimings
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

type Pipeline struct {
	detector    Detector
	jpegQuality int
	log         *logger.Logger
}

func NewPipeline(detector Detector, jpegQuality int, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{detector: detector, jpegQuality: jpegQuality, log: log}
}

// Run decodes data, detects objects and renders the annotated JPEG.
func (p *Pipeline) Run(ctx context.Context, data []byte, requestID string) (out Outcome) {
	startTotal := time.Now()
	timings := &models.ProcessingTimings{RequestID: requestID}
	out.Timings = timings

	defer func() {
		if r := recover(); r != nil {
			out = failed(timings, fmt.Errorf("unexpected panic: %v", r))
		}
		timings.Total = time.Since(startTotal)
	}()

	decodeStart := time.Now()
	img, err := decodeImage(data)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		return failed(timings, &detections.ProcessingError{Message: detections.StageDecode, Cause: err})
	}

	results, err := p.detector.Predict(ctx, img)
	if err != nil {
		return failed(timings, err)
	}
	if len(results) == 0 {
		return failed(timings, errNoResult)
	}
	result := results[0]
	timings.Preprocess = result.Preprocess
	timings.Inference = result.Inference
	timings.Postprocess = result.Postprocess
	p.log.Info(MsgDetectionCompleted, len(result.Detections))

	renderStart := time.Now()
	plotted := result.Plot()
	timings.Render = time.Since(renderStart)

	encodeStart := time.Now()
	encoded, err := encodeJPEG(plotted, p.jpegQuality)
	timings.Encode = time.Since(encodeStart)
	if err != nil {
		return failed(timings, &detections.ProcessingError{Message: detections.StageEncode, Cause: err})
	}

	dets := result.Detections
	if dets == nil {
		dets = []models.Detection{}
	}
	return Outcome{
		Response: models.DetectionResponse{
			Success:    true,
			Detections: dets,
			Image:      encoded,
		},
		Timings: timings,
	}
}

var errNoResult = errors.New(MsgNoResult)

func failed(timings *models.ProcessingTimings, err error) Outcome {
	return Outcome{Response: models.Failure(err), Err: err, Timings: timings}
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New(MsgEmptyUpload)
	}
	return imaging.Decode(bytes.NewReader(data))
}

func encodeJPEG(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
