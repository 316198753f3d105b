package detections

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrModelNotFound = errors.New("model file not found")

// ResolveModelPath picks the explicit path, then MODEL_PATH, then the default.
func ResolveModelPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(ModelPathEnv); env != "" {
		return env
	}
	return DefaultModelPath
}

// Load opens a model exported in the current channel-major layout.
// It never panics: every failure is logged and returned, and the caller is
// expected to treat a non-nil error as fatal.
func Load(path string, opts Options) (*Detector, error) {
	return load(path, LayoutChannelMajor, "default settings", opts)
}

// LoadWithAlternativeMethod opens a model produced by the older training
// pipeline, whose output is row-major with an objectness column. It is only
// used when an operator selects it.
func LoadWithAlternativeMethod(path string, opts Options) (*Detector, error) {
	return load(path, LayoutRowMajor, "alternative method", opts)
}

func load(path string, layout OutputLayout, method string, opts Options) (det *Detector, err error) {
	opts = opts.withDefaults()
	log := opts.Logger
	path = ResolveModelPath(path)

	defer func() {
		if r := recover(); r != nil {
			det = nil
			err = fmt.Errorf("load model %s: unexpected panic: %v", path, r)
			log.Error("Error loading model: %v", err)
		}
	}()

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		abs = path
	}
	log.Info("Attempting to load model from: %s (%s)", abs, method)

	if err := checkModelFile(abs); err != nil {
		log.Error("Model file not found at: %s", abs)
		return nil, err
	}

	if !RuntimeReady() {
		err := errors.New("onnxruntime environment is not initialized")
		log.Error("Error loading model: %v", err)
		return nil, err
	}

	info, err := inspectModel(abs, layout)
	if err != nil {
		log.Error("Error loading model: %v", err)
		return nil, fmt.Errorf("load model %s: %w", abs, err)
	}

	names, err := readNames(abs)
	if err != nil {
		log.Warning("Class names unavailable, using numeric labels: %v", err)
		names = map[int]string{}
	}

	threads := threadsPerSession(opts.PoolSize)
	pool, err := NewSessionPool(opts.PoolSize, opts.AcquireTimeout, func() (Session, error) {
		return newModelSession(abs, info, threads)
	})
	if err != nil {
		log.Error("Error loading model: %v", err)
		return nil, fmt.Errorf("load model %s: %w", abs, err)
	}

	det = newDetector(pool, *info, layout, names, opts)
	w, h := det.InputSize()
	log.Info("Model loaded successfully with %s: input %dx%d, %d classes, %s output, %d session(s)",
		method, w, h, det.NumClasses(), layout, pool.Size())
	return det, nil
}

func checkModelFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrModelNotFound, path)
	}
	return nil
}
