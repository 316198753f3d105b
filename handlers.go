package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/golfvision/golfball-detection-service/config"
	"github.com/golfvision/golfball-detection-service/detections"
	"github.com/golfvision/golfball-detection-service/logger"
	"github.com/golfvision/golfball-detection-service/models"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// AppState is shared by every handler. It is built once at startup and
// only read afterwards.
type AppState struct {
	Config   *config.Config
	Detector Detector
	Pipeline *Pipeline
	Logger   *logger.Logger
}

func NewAppState(cfg *config.Config, detector Detector, log *logger.Logger) *AppState {
	if log == nil {
		log = logger.Discard()
	}
	return &AppState{
		Config:   cfg,
		Detector: detector,
		Pipeline: NewPipeline(detector, cfg.JPEGQuality, log),
		Logger:   log,
	}
}

// NewRouter wires routes, CORS, panic recovery and the access log.
func NewRouter(state *AppState, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/detect", state.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/detect/", state.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/detect/stream", state.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/health", state.handleHealth).Methods(http.MethodGet)
	state.addMonitoringRoutes(r)

	var h http.Handler = r
	h = newCORS(state.Config.AllowedOrigins()).Handler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(state.Logger),
		handlers.PrintRecoveryStack(true),
	)(h)
	if accessLog != nil {
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}
	return h
}

func (s *AppState) handleDetect(w http.ResponseWriter, r *http.Request) {
	requestID := fmt.Sprintf("%d", time.Now().UnixNano())

	maxBytes := s.Config.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	data, err := readUpload(r, maxBytes)
	if err != nil {
		if isBodyTooLarge(err) {
			err = fmt.Errorf(MsgUploadTooLarge, s.Config.MaxUploadMB)
		}
		err = &detections.ProcessingError{Message: detections.StageRead, Cause: err}
		s.Logger.Error("RequestID: %s - "+MsgProcessingFailed, requestID, err)
		writeJSON(w, http.StatusInternalServerError, models.Failure(err))
		return
	}

	// A client going away must not abort inference that already started.
	ctx := context.WithoutCancel(r.Context())
	outcome := s.Pipeline.Run(ctx, data, requestID)
	logTimings(s.Logger, outcome.Timings)

	if !outcome.OK() {
		s.Logger.Error("RequestID: %s - "+MsgProcessingFailed, requestID, outcome.Err)
		writeJSON(w, http.StatusInternalServerError, outcome.Response)
		return
	}

	s.Logger.Info(MsgResponseCreated)
	writeJSON(w, http.StatusOK, outcome.Response)
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: StatusHealthy})
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"cpu_features": detections.CPUFeatures(),
	}

	if det, ok := s.Detector.(*detections.Detector); ok {
		width, height := det.InputSize()
		response["pool"] = det.Stats()
		response["model"] = map[string]interface{}{
			"input_width":  width,
			"input_height": height,
			"classes":      det.NumClasses(),
			"layout":       det.Layout().String(),
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// readUpload returns the image bytes from a multipart "file" field, a JSON
// {"image": "<base64>"} body, or the raw body. r.Body must already be
// limited with http.MaxBytesReader.
func readUpload(r *http.Request, maxBytes int64) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "multipart/form-data":
		return handleMultipartRequest(r, maxBytes)
	case "application/json":
		return handleJSONRequest(r)
	default:
		return handleRawRequest(r)
	}
}

func handleMultipartRequest(r *http.Request, maxBytes int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errors.New(MsgMissingFile)
		}
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func handleRawRequest(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	// multipart wraps the reader error as text on some paths
	return strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func logTimings(log *logger.Logger, t *models.ProcessingTimings) {
	if t == nil || !log.DebugEnabled() {
		return
	}
	log.Debug("RequestID: %s - Processing times:\n"+
		"\tImage Decode: %v\n"+
		"\tPreprocess:  %v\n"+
		"\tInference:   %v\n"+
		"\tPostprocess: %v\n"+
		"\tRender:      %v\n"+
		"\tEncode:      %v\n"+
		"\tTotal:       %v",
		t.RequestID,
		t.ImageDecode,
		t.Preprocess,
		t.Inference,
		t.Postprocess,
		t.Render,
		t.Encode,
		t.Total)
}
