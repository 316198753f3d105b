package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	DefaultModelPath = "model/best.onnx"

	LoaderDefault     = "default"
	LoaderAlternative = "alternative"
)

// DevOrigins are the local frontend dev servers that may always call the API.
var DevOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`

	ModelPath   string `validate:"required"`
	ModelLoader string `validate:"oneof=default alternative"`
	RuntimeLib  string `validate:"required"`
	FrontendURL string `validate:"omitempty,url"`

	PoolSize       int           `validate:"min=1,max=64"`
	AcquireTimeout time.Duration `validate:"gt=0"`

	ConfThreshold float64 `validate:"gt=0,lte=1"`
	IouThreshold  float64 `validate:"gt=0,lte=1"`
	MaxDetections int     `validate:"min=1"`

	JPEGQuality int `validate:"min=1,max=100"`
	MaxUploadMB int `validate:"min=1"`

	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`

	Debug bool
}

// Load reads an optional .env file, then the process environment.
// Values already present in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the current environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Host:           p.getEnv("HOST", "0.0.0.0"),
		Port:           p.getEnvAsInt("PORT", 8000),
		ModelPath:      p.getEnv("MODEL_PATH", DefaultModelPath),
		ModelLoader:    strings.ToLower(p.getEnv("MODEL_LOADER", LoaderDefault)),
		RuntimeLib:     p.getEnv("ONNXRUNTIME_LIB", DefaultRuntimeLib()),
		FrontendURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("FRONTEND_URL")), "/"),
		PoolSize:       p.getEnvAsInt("POOL_SIZE", 1),
		AcquireTimeout: p.getEnvAsDuration("ACQUIRE_TIMEOUT", 30*time.Second),
		ConfThreshold:  p.getEnvAsFloat("CONF_THRESHOLD", 0.25),
		IouThreshold:   p.getEnvAsFloat("IOU_THRESHOLD", 0.7),
		MaxDetections:  p.getEnvAsInt("MAX_DETECTIONS", 300),
		JPEGQuality:    p.getEnvAsInt("JPEG_QUALITY", 90),
		MaxUploadMB:    p.getEnvAsInt("MAX_UPLOAD_MB", 32),
		ReadTimeout:    p.getEnvAsDuration("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:   p.getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
		Debug:          p.getEnvAsBool("DEBUG", false),
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins returns the CORS allow-list with empty entries removed.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(DevOrigins)+1)
	for _, o := range append(append([]string{}, DevOrigins...), c.FrontendURL) {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MaxUploadBytes is the largest accepted request body.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// DefaultRuntimeLib is the bare ONNX Runtime shared library file name for
// this platform. A bare name is resolved by the dynamic loader's search path.
func DefaultRuntimeLib() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

type parser struct {
	errs []error
}

func (p *parser) getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) getEnvAsInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) getEnvAsFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) getEnvAsBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// getEnvAsDuration accepts Go duration strings ("30s", "2m"). Bare numbers are seconds.
func (p *parser) getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := cast.ToIntE(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
