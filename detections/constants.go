package detections

import "time"

const (
	// DefaultInputSize is used when the model declares a dynamic spatial dimension.
	DefaultInputSize = 640
	LetterboxFill    = 114

	DefaultConfThreshold = 0.25
	DefaultIouThreshold  = 0.7
	DefaultMaxDetections = 300
	MaxNMSCandidates     = 30000

	DefaultPoolSize       = 1
	DefaultAcquireTimeout = 30 * time.Second

	DefaultModelPath = "model/best.onnx"
	ModelPathEnv     = "MODEL_PATH"
)
