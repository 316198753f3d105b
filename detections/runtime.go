package detections

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sys/cpu"
)

// InitRuntime loads the ONNX Runtime shared library and initializes the
// process-wide environment. It must run before Load.
func InitRuntime(libPath string) error {
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime environment from %s: %w", libPath, err)
	}
	return nil
}

func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

func RuntimeReady() bool {
	return ort.IsInitialized()
}

// CPUFeatures lists the vector extensions the inference kernels can use on this host.
func CPUFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512f")
		}
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		}
		if cpu.X86.HasFMA {
			features = append(features, "fma")
		}
		if cpu.X86.HasSSE41 {
			features = append(features, "sse4.1")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "neon")
		}
		if cpu.ARM64.HasFPHP {
			features = append(features, "fp16")
		}
	}
	return features
}

// threadsPerSession splits the host CPUs across the pooled sessions.
func threadsPerSession(poolSize int) int {
	if poolSize <= 0 {
		poolSize = 1
	}
	n := runtime.NumCPU() / poolSize
	if n < 1 {
		return 1
	}
	return n
}
