package models

import (
	"encoding/json"
	"time"
)

// Detection is one detected object in source-image pixel space.
type Detection struct {
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2
	Confidence float64    `json:"confidence"`
	ClassID    int        `json:"-"`
}

// DetectionResponse is the /detect contract. A successful response always
// carries a detections array and an image; a failed one only the error.
type DetectionResponse struct {
	Success    bool
	Detections []Detection
	Image      string
	Error      string
}

type successBody struct {
	Success    bool        `json:"success"`
	Detections []Detection `json:"detections"`
	Image      string      `json:"image"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (r DetectionResponse) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureBody{Error: r.Error})
	}
	dets := r.Detections
	if dets == nil {
		dets = []Detection{}
	}
	return json.Marshal(successBody{Success: true, Detections: dets, Image: r.Image})
}

func (r *DetectionResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success    bool        `json:"success"`
		Detections []Detection `json:"detections"`
		Image      string      `json:"image"`
		Error      string      `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = DetectionResponse{
		Success:    raw.Success,
		Detections: raw.Detections,
		Image:      raw.Image,
		Error:      raw.Error,
	}
	return nil
}

// Failure builds the error shape of DetectionResponse.
func Failure(err error) DetectionResponse {
	return DetectionResponse{Error: err.Error()}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Render      time.Duration
	Encode      time.Duration
	Total       time.Duration
}
