package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golfvision/golfball-detection-service/config"
	"github.com/golfvision/golfball-detection-service/detections"
	"github.com/golfvision/golfball-detection-service/logger"
	"github.com/golfvision/golfball-detection-service/models"
)

// fakeDetector reports one box inset from the image border, so each
// response can be traced back to the image that produced it.
type fakeDetector struct {
	mu       sync.Mutex
	calls    int
	err      error
	panicMsg string
	empty    bool
}

func (f *fakeDetector) Predict(_ context.Context, images ...image.Image) ([]*detections.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}

	results := make([]*detections.Result, 0, len(images))
	for _, img := range images {
		b := img.Bounds()
		results = append(results, &detections.Result{
			Source: img,
			Detections: []models.Detection{
				{BBox: [4]float64{1, 2, float64(b.Dx() - 1), float64(b.Dy() - 2)}, Confidence: 0.75},
			},
		})
	}
	return results, nil
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errDetectorDown = errors.New("model inference: kernel failure")

func testConfig() *config.Config {
	return &config.Config{
		JPEGQuality: 90,
		MaxUploadMB: 8,
		FrontendURL: "https://golf.example.com",
	}
}

func newTestState(t *testing.T, det Detector) *AppState {
	t.Helper()
	return NewAppState(testConfig(), det, logger.Discard())
}

func newTestRouter(t *testing.T, det Detector) http.Handler {
	t.Helper()
	return NewRouter(newTestState(t, det), nil)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newUploadRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// emptyResultDetector finds nothing in any image.
type emptyResultDetector struct{}

func (emptyResultDetector) Predict(_ context.Context, images ...image.Image) ([]*detections.Result, error) {
	results := make([]*detections.Result, len(images))
	for i, img := range images {
		results[i] = &detections.Result{Source: img}
	}
	return results, nil
}
